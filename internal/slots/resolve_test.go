package slots

import (
	"testing"

	"tischbuch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRule(t *testing.T) {
	rules := []model.SlotRule{
		{ID: "weekday", AppliesDays: []int{0, 1, 2, 3, 4}, Priority: 1, State: model.StateActive},
		{ID: "march", AppliesDays: []int{1}, ValidFrom: "2026-03-01", ValidTo: "2026-03-31", Priority: 5, State: model.StateActive},
		{ID: "archived", AppliesDays: []int{1}, Priority: 99, State: model.StateArchived},
		{ID: "inactive", AppliesDays: []int{1}, Priority: 99, State: model.StateInactive},
	}

	tests := []struct {
		name    string
		date    string
		weekday int
		want    string
	}{
		{"higher priority in window", "2026-03-03", 1, "march"},
		{"outside validity falls back", "2026-04-07", 1, "weekday"},
		{"weekday not covered", "2026-03-08", 6, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRule(rules, tt.date, tt.weekday)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestResolveRule_TieBreakIsOrderIndependent(t *testing.T) {
	a := model.SlotRule{ID: "b-rule", AppliesDays: []int{2}, Priority: 3, State: model.StateActive}
	b := model.SlotRule{ID: "a-rule", AppliesDays: []int{2}, Priority: 3, State: model.StateActive}

	first := ResolveRule([]model.SlotRule{a, b}, "2026-03-04", 2)
	second := ResolveRule([]model.SlotRule{b, a}, "2026-03-04", 2)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, "a-rule", first.ID)
	assert.Equal(t, first.ID, second.ID)
}

func TestResolveException(t *testing.T) {
	exceptions := []model.SlotException{
		{ID: "x2", Date: "2026-03-14", State: model.StateActive},
		{ID: "x1", Date: "2026-03-14", State: model.StateActive},
		{ID: "x0", Date: "2026-03-14", State: model.StateArchived},
		{ID: "y", Date: "2026-03-15", State: model.StateActive},
	}

	got, n := ResolveException(exceptions, "2026-03-14")
	require.NotNil(t, got)
	assert.Equal(t, "x1", got.ID)
	assert.Equal(t, 2, n)

	got, n = ResolveException(exceptions, "2026-03-16")
	assert.Nil(t, got)
	assert.Zero(t, n)
}
