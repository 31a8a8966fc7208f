package openinghours

import (
	"context"
	"testing"

	"tischbuch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVenue(t *testing.T) *config.VenueConfig {
	t.Helper()
	venue, err := config.ParseVenueConfig([]byte(`
timezone: Europe/Berlin
weekly:
  - days: [1, 2, 3, 4, 5, 6]
    blocks:
      - start: "11:30"
        end: "14:30"
      - start: "17:30"
        end: "22:00"
      - start: "22:00"
        end: "23:00"
        reservable: false
days_off: [0]
holidays:
  - date: "2026-12-25"
    name: "1. Weihnachtstag"
closures:
  - from: "2026-01-05"
    to: "2026-01-06"
    reason: Betriebsferien
`))
	require.NoError(t, err)
	return venue
}

func TestVenueProvider_EffectiveHours(t *testing.T) {
	p := NewVenueProvider(testVenue(t))
	ctx := context.Background()

	tests := []struct {
		name   string
		date   string
		open   bool
		reason string
	}{
		{"tuesday open", "2026-03-03", true, ""},
		{"monday day off", "2026-03-02", false, "regular day off"},
		{"sunday no blocks", "2026-03-08", false, "no opening hours configured"},
		{"holiday", "2026-12-25", false, "1. Weihnachtstag"},
		{"closure", "2026-01-06", false, "Betriebsferien"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := p.EffectiveHours(ctx, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.open, h.Open)
			assert.Equal(t, tt.reason, h.ClosureReason)
			if !tt.open {
				assert.Empty(t, h.Blocks)
			}
		})
	}
}

func TestVenueProvider_ReservableBlocks(t *testing.T) {
	p := NewVenueProvider(testVenue(t))
	h, err := p.EffectiveHours(context.Background(), "2026-03-03")
	require.NoError(t, err)

	assert.Len(t, h.Blocks, 3)
	rb := h.ReservableBlocks()
	require.Len(t, rb, 2)
	assert.Equal(t, "11:30", rb[0].Start)
	assert.Equal(t, "22:00", rb[1].End)
}

func TestVenueProvider_Errors(t *testing.T) {
	empty := NewVenueProvider(nil)
	_, err := empty.EffectiveHours(context.Background(), "2026-03-03")
	assert.Error(t, err)

	p := NewVenueProvider(testVenue(t))
	_, err = p.EffectiveHours(context.Background(), "03.03.2026")
	assert.Error(t, err)
}

func TestVenueProvider_Update(t *testing.T) {
	p := NewVenueProvider(testVenue(t))
	next, err := config.ParseVenueConfig([]byte("days_off: [1]\n"))
	require.NoError(t, err)

	p.Update(next)
	h, err := p.EffectiveHours(context.Background(), "2026-03-03")
	require.NoError(t, err)
	assert.False(t, h.Open)
}
