package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"gpetl/internal/report"
)

const (
	sheetCategories = "Categories"
	sheetAverages   = "Averages"
	sheetPractices  = "Practices"
)

// XLSX renders a workbook with one sheet per summary section and native
// charts: subscription rate per category with the mean-rate line, average
// deprivation score per group, and practice rate against deprivation score.
type XLSX struct{}

var _ Renderer = XLSX{}

// Name implements Renderer.
func (XLSX) Name() string { return "xlsx" }

// Render implements Renderer.
func (XLSX) Render(w io.Writer, s report.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetCategories); err != nil {
		return err
	}
	for _, name := range []string{sheetAverages, sheetPractices} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	if err := writeCategories(f, s); err != nil {
		return fmt.Errorf("categories sheet: %w", err)
	}
	if err := writeAverages(f, s); err != nil {
		return fmt.Errorf("averages sheet: %w", err)
	}
	if err := writePractices(f, s); err != nil {
		return fmt.Errorf("practices sheet: %w", err)
	}
	_, err := f.WriteTo(w)
	return err
}

func setRow(f *excelize.File, sheet string, row int, vals ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &vals)
}

func writeCategories(f *excelize.File, s report.Summary) error {
	const sh = sheetCategories
	if err := setRow(f, sh, 1, "Deprivation category", "Total patients", "TEC subscribers", "Subscription rate", "Mean rate"); err != nil {
		return err
	}
	for i, c := range s.Categories {
		if err := setRow(f, sh, i+2, c.Category, c.Total, c.Subscribers, cellValue(c.Rate), cellValue(s.MeanCategoryRate)); err != nil {
			return err
		}
	}
	if len(s.Categories) == 0 {
		return nil
	}
	last := len(s.Categories) + 1
	cats := fmt.Sprintf("%s!$A$2:$A$%d", sh, last)

	bars := &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$D$1", sh),
			Categories: cats,
			Values:     fmt.Sprintf("%s!$D$2:$D$%d", sh, last),
		}},
		Title: []excelize.RichTextRun{{Text: Title}},
	}
	line := &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$E$1", sh),
			Categories: cats,
			Values:     fmt.Sprintf("%s!$E$2:$E$%d", sh, last),
		}},
	}
	return f.AddChart(sh, "G2", bars, line)
}

func writeAverages(f *excelize.File, s report.Summary) error {
	const sh = sheetAverages
	rows := [][]any{
		{"Group", "Average deprivation score"},
		{"All patients", cellValue(s.Averages.All)},
		{"TEC subscribers", cellValue(s.Averages.Subscribers)},
		{"Non-subscribers", cellValue(s.Averages.NonSubscribers)},
	}
	for i, r := range rows {
		if err := setRow(f, sh, i+1, r...); err != nil {
			return err
		}
	}
	return f.AddChart(sh, "D2", &excelize.Chart{
		Type: excelize.Bar,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$B$1", sh),
			Categories: fmt.Sprintf("%s!$A$2:$A$4", sh),
			Values:     fmt.Sprintf("%s!$B$2:$B$4", sh),
		}},
		Title: []excelize.RichTextRun{{Text: "Average deprivation score by TEC status"}},
	})
}

func writePractices(f *excelize.File, s report.Summary) error {
	const sh = sheetPractices
	if err := setRow(f, sh, 1, "Practice key", "GP practice", "Deprivation score", "Deprivation category", "Total patients", "TEC subscribers", "Subscription rate"); err != nil {
		return err
	}
	for i, p := range s.Practices {
		if err := setRow(f, sh, i+2, p.Key, p.Name, cellValue(p.Score), p.Category, p.Total, p.Subscribers, cellValue(p.Rate)); err != nil {
			return err
		}
	}
	if len(s.Practices) == 0 {
		return nil
	}
	last := len(s.Practices) + 1
	return f.AddChart(sh, "I2", &excelize.Chart{
		Type: excelize.Scatter,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$G$1", sh),
			Categories: fmt.Sprintf("%s!$C$2:$C$%d", sh, last),
			Values:     fmt.Sprintf("%s!$G$2:$G$%d", sh, last),
			Marker:     excelize.ChartMarker{Symbol: "circle", Size: 7},
		}},
		Title: []excelize.RichTextRun{{Text: "Practice subscription rate vs deprivation score"}},
	})
}
