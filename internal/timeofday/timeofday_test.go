package timeofday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"11:30", 690, false},
		{"23:59", 1439, false},
		{"9:05", 545, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"", 0, true},
		{"1230", 0, true},
		{"12:3", 0, true},
		{"ab:cd", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMinutes(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMustMinutesPanicsOnGarbage(t *testing.T) {
	assert.Panics(t, func() { MustMinutes("") })
	assert.Equal(t, 1140, MustMinutes("19:00"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "00:00", Format(0))
	assert.Equal(t, "09:05", Format(545))
	assert.Equal(t, "20:55", Format(1255))
	assert.Equal(t, "00:35", Format(1440+35))
	assert.Equal(t, "23:30", Format(-30))
}

func TestOverlaps(t *testing.T) {
	assert.True(t, Overlaps(1140, 1255, 1170, 1320))
	assert.False(t, Overlaps(600, 660, 660, 720), "touching intervals do not overlap")
	assert.False(t, Overlaps(660, 720, 600, 660))
	assert.True(t, Overlaps(600, 700, 610, 620), "containment overlaps")
}

func TestLattice(t *testing.T) {
	t.Run("inclusive end on lattice point", func(t *testing.T) {
		got := Lattice(MustMinutes("11:30"), MustMinutes("13:00"), 30)
		assert.Equal(t, []string{"11:30", "12:00", "12:30", "13:00"}, got)
	})

	t.Run("end between lattice points", func(t *testing.T) {
		got := Lattice(MustMinutes("11:30"), MustMinutes("12:45"), 30)
		assert.Equal(t, []string{"11:30", "12:00", "12:30"}, got)
	})

	t.Run("every slot sits on the lattice", func(t *testing.T) {
		start, end, step := MustMinutes("10:10"), MustMinutes("22:00"), 25
		for _, s := range Lattice(start, end, step) {
			m := MustMinutes(s)
			assert.GreaterOrEqual(t, m, start)
			assert.LessOrEqual(t, m, end)
			assert.Zero(t, (m-start)%step)
		}
	})

	t.Run("degenerate", func(t *testing.T) {
		assert.Empty(t, Lattice(600, 500, 30))
		assert.Empty(t, Lattice(600, 700, 0))
		assert.Equal(t, []string{"10:00"}, Lattice(600, 600, 30))
	})
}

func TestWeekday(t *testing.T) {
	monday := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, Weekday(monday))
	assert.Equal(t, 6, Weekday(monday.AddDate(0, 0, 6)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-10-19", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.October, d.Month())

	_, err = ParseDate("19.10.2026", time.UTC)
	assert.Error(t, err)
}
