// Package openinghours answers whether the venue is open on a date and which
// time blocks can be booked.
package openinghours

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tischbuch/internal/config"
	"tischbuch/internal/timeofday"
)

// Block is one opening period of a day.
type Block struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	Reservable bool   `json:"reservable"`
}

// Hours is the effective opening situation for a date.
type Hours struct {
	Open          bool    `json:"open"`
	ClosureReason string  `json:"closure_reason,omitempty"`
	Blocks        []Block `json:"blocks"`
}

// ReservableBlocks returns only the blocks guests may book into.
func (h Hours) ReservableBlocks() []Block {
	out := make([]Block, 0, len(h.Blocks))
	for _, b := range h.Blocks {
		if b.Reservable {
			out = append(out, b)
		}
	}
	return out
}

// Provider returns effective opening hours for a date.
type Provider interface {
	EffectiveHours(ctx context.Context, date string) (Hours, error)
}

// VenueProvider serves opening hours from the venue configuration.
// The configuration can be swapped at runtime by the venue watcher.
type VenueProvider struct {
	mu    sync.RWMutex
	venue *config.VenueConfig
}

func NewVenueProvider(venue *config.VenueConfig) *VenueProvider {
	return &VenueProvider{venue: venue}
}

// Update replaces the active venue configuration.
func (p *VenueProvider) Update(venue *config.VenueConfig) {
	p.mu.Lock()
	p.venue = venue
	p.mu.Unlock()
}

// Location returns the venue time zone.
func (p *VenueProvider) Location() *time.Location {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.venue == nil {
		return time.UTC
	}
	return p.venue.Location()
}

func (p *VenueProvider) EffectiveHours(_ context.Context, date string) (Hours, error) {
	p.mu.RLock()
	venue := p.venue
	p.mu.RUnlock()

	if venue == nil {
		return Hours{}, fmt.Errorf("venue configuration not loaded")
	}

	d, err := timeofday.ParseDate(date, venue.Location())
	if err != nil {
		return Hours{}, err
	}

	if ok, name := venue.IsHoliday(date); ok {
		if name == "" {
			name = "public holiday"
		}
		return Hours{Open: false, ClosureReason: name}, nil
	}
	if ok, reason := venue.ClosureOn(date); ok {
		if reason == "" {
			reason = "closed"
		}
		return Hours{Open: false, ClosureReason: reason}, nil
	}

	weekday := timeofday.Weekday(d)
	if venue.IsDayOff(weekday) {
		return Hours{Open: false, ClosureReason: "regular day off"}, nil
	}

	cfgBlocks := venue.BlocksFor(weekday)
	if len(cfgBlocks) == 0 {
		return Hours{Open: false, ClosureReason: "no opening hours configured"}, nil
	}

	blocks := make([]Block, 0, len(cfgBlocks))
	for _, b := range cfgBlocks {
		blocks = append(blocks, Block{Start: b.Start, End: b.End, Reservable: b.IsReservable()})
	}
	return Hours{Open: true, Blocks: blocks}, nil
}
