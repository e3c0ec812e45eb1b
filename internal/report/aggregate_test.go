package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioObservations() []Observation {
	return []Observation{
		{PatientID: "1", PracticeKey: "A", PracticeName: "Alpha", Score: 20, Category: 2, TecOrNo: "tec"},
		{PatientID: "2", PracticeKey: "A", PracticeName: "Alpha", Score: 20, Category: 2, TecOrNo: "no"},
		{PatientID: "3", PracticeKey: "B", PracticeName: "Beta", Score: 40, Category: 4, TecOrNo: " TEC "},
	}
}

func TestAggregateScenario(t *testing.T) {
	s := Aggregate(scenarioObservations(), Options{})

	require.Len(t, s.Categories, 2)
	assert.Equal(t, CategorySummary{Category: 2, Total: 2, Subscribers: 1, Rate: Of(0.5)}, s.Categories[0])
	assert.Equal(t, CategorySummary{Category: 4, Total: 1, Subscribers: 1, Rate: Of(1.0)}, s.Categories[1])
	assert.Equal(t, Of(0.75), s.MeanCategoryRate)
	assert.Equal(t, 3, s.Observations)
}

func TestAggregateAverages(t *testing.T) {
	s := Aggregate(scenarioObservations(), Options{})
	assert.InDelta(t, 80.0/3, s.Averages.All.V, 1e-9)
	assert.Equal(t, Of(30), s.Averages.Subscribers)
	assert.Equal(t, Of(20), s.Averages.NonSubscribers)
}

func TestAggregateEmptyCategoryIsUndefined(t *testing.T) {
	s := Aggregate(scenarioObservations(), Options{Categories: []int64{1, 2, 3, 4, 5}})

	require.Len(t, s.Categories, 5)
	empty, ok := s.Category(3)
	require.True(t, ok)
	assert.Equal(t, 0, empty.Total)
	assert.False(t, empty.Rate.Defined)

	// other categories are unaffected and the mean ignores undefined rates
	two, _ := s.Category(2)
	assert.Equal(t, Of(0.5), two.Rate)
	assert.Equal(t, Of(0.75), s.MeanCategoryRate)
}

func TestAggregateNoObservations(t *testing.T) {
	s := Aggregate(nil, Options{})
	assert.Empty(t, s.Categories)
	assert.Empty(t, s.Practices)
	assert.Equal(t, Undefined, s.Averages.All)
	assert.Equal(t, Undefined, s.Averages.Subscribers)
	assert.Equal(t, Undefined, s.MeanCategoryRate)
}

func TestAggregateNoSubscribers(t *testing.T) {
	obs := []Observation{{PracticeKey: "A", Category: 1, Score: 5, TecOrNo: "No"}}
	s := Aggregate(obs, Options{})
	assert.Equal(t, Undefined, s.Averages.Subscribers)
	assert.Equal(t, Of(5), s.Averages.NonSubscribers)
	assert.Equal(t, Of(0), s.Categories[0].Rate)
}

func TestAggregatePractices(t *testing.T) {
	obs := append(scenarioObservations(),
		Observation{PatientID: "4", PracticeKey: "C", PracticeName: "Alpha", Score: 1, Category: 1, TecOrNo: "no"},
	)
	s := Aggregate(obs, Options{})

	require.Len(t, s.Practices, 3)
	assert.Equal(t, []string{"A", "C", "B"}, []string{s.Practices[0].Key, s.Practices[1].Key, s.Practices[2].Key})
	assert.Equal(t, PracticeSummary{Key: "A", Name: "Alpha", Score: Of(20), Category: 2, Total: 2, Subscribers: 1, Rate: Of(0.5)}, s.Practices[0])
}

func TestAggregateAllScoresMissing(t *testing.T) {
	obs := []Observation{
		{PracticeKey: "A", PracticeName: "Alpha", Category: 2, NoScore: true, TecOrNo: "TEC"},
		{PracticeKey: "A", PracticeName: "Alpha", NoCategory: true, NoScore: true, TecOrNo: "No"},
	}
	s := Aggregate(obs, Options{})

	assert.Equal(t, Averages{}, s.Averages)
	require.Len(t, s.Categories, 1)
	assert.Equal(t, CategorySummary{Category: 2, Total: 1, Subscribers: 1, Rate: Of(1)}, s.Categories[0])
	require.Len(t, s.Practices, 1)
	assert.Equal(t, Undefined, s.Practices[0].Score)
	assert.Equal(t, 2, s.Practices[0].Total)
	assert.Equal(t, 2, s.Observations)
}
