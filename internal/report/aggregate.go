// Package report computes the subscription statistics read back from the
// analytical store and hands them to renderers.
//
// Aggregation never fails: any group whose denominator is zero yields an
// Undefined Value, and every other group is still computed.
package report

import (
	"cmp"
	"slices"

	"gpetl/internal/model"
)

// Observation is one patient row of the fact ⨝ dimensions join.
type Observation struct {
	PatientID    string
	PracticeKey  string
	PracticeName string
	Score        float64
	Category     int64
	TecOrNo      string
	// NoScore and NoCategory are set when the store returned NULL. Such rows
	// stay out of the averages and the category groups respectively.
	NoScore    bool
	NoCategory bool
}

// Subscriber reports whether the patient subscribes to TEC.
func (o Observation) Subscriber() bool { return model.IsSubscriber(o.TecOrNo) }

// CategorySummary is the subscription breakdown of one deprivation category.
type CategorySummary struct {
	Category    int64
	Total       int
	Subscribers int
	Rate        Value
}

// Averages are the mean overall deprivation scores per group. Each mean has
// its own denominator: rows without a score are not counted.
type Averages struct {
	All            Value
	Subscribers    Value
	NonSubscribers Value
}

// PracticeSummary is the subscription breakdown of one GP practice.
type PracticeSummary struct {
	Key  string
	Name string
	// Score is the first non-NULL score seen for the practice.
	Score Value
	// Category is 0 when no row of the practice carried one.
	Category    int64
	Total       int
	Subscribers int
	Rate        Value
}

// Summary is everything a renderer needs.
type Summary struct {
	Observations int
	Categories   []CategorySummary
	Averages     Averages
	Practices    []PracticeSummary
	// MeanCategoryRate is the mean of the defined category rates.
	MeanCategoryRate Value
}

// Options tune Aggregate.
type Options struct {
	// Categories lists categories to report even when no patient falls in
	// them; they appear with Total 0 and an Undefined rate.
	Categories []int64
}

// Aggregate groups observations by deprivation category and by practice and
// computes the score averages. Categories come out ascending; practices by
// name, then key.
func Aggregate(obs []Observation, opts Options) Summary {
	cats := map[int64]*CategorySummary{}
	for _, c := range opts.Categories {
		cats[c] = &CategorySummary{Category: c}
	}
	pracs := map[string]*PracticeSummary{}

	var (
		sumAll, sumSub, sumNon float64
		nAll, nSub, nNon       int
	)
	for _, o := range obs {
		sub := o.Subscriber()

		p, ok := pracs[o.PracticeKey]
		if !ok {
			p = &PracticeSummary{Key: o.PracticeKey, Name: o.PracticeName}
			pracs[o.PracticeKey] = p
		}
		p.Total++
		if sub {
			p.Subscribers++
		}
		if !p.Score.Defined && !o.NoScore {
			p.Score = Of(o.Score)
		}
		if p.Category == 0 && !o.NoCategory {
			p.Category = o.Category
		}

		if !o.NoCategory {
			c, ok := cats[o.Category]
			if !ok {
				c = &CategorySummary{Category: o.Category}
				cats[o.Category] = c
			}
			c.Total++
			if sub {
				c.Subscribers++
			}
		}

		if o.NoScore {
			continue
		}
		sumAll += o.Score
		nAll++
		if sub {
			sumSub += o.Score
			nSub++
		} else {
			sumNon += o.Score
			nNon++
		}
	}

	s := Summary{
		Observations: len(obs),
		Averages: Averages{
			All:            Ratio(sumAll, float64(nAll)),
			Subscribers:    Ratio(sumSub, float64(nSub)),
			NonSubscribers: Ratio(sumNon, float64(nNon)),
		},
	}

	var rateSum float64
	var rated int
	for _, c := range cats {
		c.Rate = Ratio(float64(c.Subscribers), float64(c.Total))
		if c.Rate.Defined {
			rateSum += c.Rate.V
			rated++
		}
		s.Categories = append(s.Categories, *c)
	}
	slices.SortFunc(s.Categories, func(a, b CategorySummary) int { return cmp.Compare(a.Category, b.Category) })
	s.MeanCategoryRate = Ratio(rateSum, float64(rated))

	for _, p := range pracs {
		p.Rate = Ratio(float64(p.Subscribers), float64(p.Total))
		s.Practices = append(s.Practices, *p)
	}
	slices.SortFunc(s.Practices, func(a, b PracticeSummary) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Key, b.Key))
	})
	return s
}

// Category returns the summary of category c.
func (s Summary) Category(c int64) (CategorySummary, bool) {
	for _, cs := range s.Categories {
		if cs.Category == c {
			return cs, true
		}
	}
	return CategorySummary{}, false
}
