package render

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"gpetl/internal/report"
)

// PDF renders a three-section document: category breakdown with a bar
// chart and mean-rate line, group averages, and the per-practice table.
type PDF struct{}

var _ Renderer = PDF{}

// Name implements Renderer.
func (PDF) Name() string { return "pdf" }

const (
	lineH     = 7.0
	chartH    = 60.0
	chartW    = 170.0
	leftMarg  = 20.0
	fontBody  = 10.0
	fontTitle = 12.0
)

// Render implements Renderer.
func (PDF) Render(w io.Writer, s report.Summary) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(leftMarg, 15, leftMarg)
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", fontTitle)
		pdf.CellFormat(0, 10, Title, "", 1, "C", false, 0, "")
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	section(pdf, "TEC subscription by deprivation category")
	body(pdf)
	for _, c := range s.Categories {
		line(pdf, fmt.Sprintf("Category %d: total patients = %d, TEC subscribers = %d, subscription rate = %s",
			c.Category, c.Total, c.Subscribers, c.Rate.Percent()))
	}
	line(pdf, fmt.Sprintf("Mean category subscription rate: %s", s.MeanCategoryRate.Percent()))
	pdf.Ln(4)
	rateChart(pdf, s)

	pdf.AddPage()
	section(pdf, "Average deprivation score")
	body(pdf)
	line(pdf, "All patients: "+s.Averages.All.String())
	line(pdf, "TEC subscribers: "+s.Averages.Subscribers.String())
	line(pdf, "Non-subscribers: "+s.Averages.NonSubscribers.String())

	pdf.AddPage()
	section(pdf, "TEC subscription rate by GP practice")
	body(pdf)
	for _, p := range s.Practices {
		line(pdf, tr(fmt.Sprintf("%s, category %d, score %s: total patients = %d, subscription rate = %s",
			p.Name, p.Category, p.Score, p.Total, p.Rate.Percent())))
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", fontTitle)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func body(pdf *fpdf.Fpdf) { pdf.SetFont("Helvetica", "", fontBody) }

func line(pdf *fpdf.Fpdf, text string) {
	pdf.MultiCell(0, lineH, text, "", "L", false)
}

// rateChart draws one bar per category scaled to the highest defined rate,
// with a dashed line at the mean rate.
func rateChart(pdf *fpdf.Fpdf, s report.Summary) {
	if len(s.Categories) == 0 {
		return
	}
	top := 0.0
	for _, c := range s.Categories {
		top = max(top, c.Rate.Float(0))
	}
	top = max(top, s.MeanCategoryRate.Float(0))
	if top == 0 {
		top = 1
	}

	x0, y0 := leftMarg, pdf.GetY()
	base := y0 + chartH
	pdf.SetDrawColor(0, 0, 0)
	pdf.Line(x0, base, x0+chartW, base)

	slot := chartW / float64(len(s.Categories))
	barW := slot * 0.6
	pdf.SetFillColor(68, 1, 84)
	pdf.SetFont("Helvetica", "", 8)
	for i, c := range s.Categories {
		x := x0 + float64(i)*slot + (slot-barW)/2
		h := chartH * c.Rate.Float(0) / top
		if h > 0 {
			pdf.Rect(x, base-h, barW, h, "F")
		}
		pdf.SetXY(x, base+1)
		pdf.CellFormat(barW, 4, fmt.Sprintf("%d", c.Category), "", 0, "C", false, 0, "")
	}

	if s.MeanCategoryRate.Defined {
		y := base - chartH*s.MeanCategoryRate.V/top
		pdf.SetDrawColor(220, 0, 0)
		pdf.SetDashPattern([]float64{2, 1}, 0)
		pdf.Line(x0, y, x0+chartW, y)
		pdf.SetDashPattern([]float64{}, 0)
		pdf.SetDrawColor(0, 0, 0)
	}
	pdf.SetXY(x0, base+6)
	body(pdf)
}
