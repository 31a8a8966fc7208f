package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// VenueListener is called with every venue configuration that was loaded
// and validated. A listener error is logged and does not stop the others.
type VenueListener func(ctx context.Context, venue *VenueConfig) error

// VenueWatcher polls the venue file and hands accepted versions to its
// listeners. A file that fails to load keeps the previous venue active and
// is reported once per modification, not on every poll.
type VenueWatcher struct {
	path      string
	interval  time.Duration
	listeners []namedListener
	logger    zerolog.Logger

	applied  time.Time
	rejected time.Time
}

type namedListener struct {
	name string
	fn   VenueListener
}

func NewVenueWatcher(path string, interval time.Duration, logger *zerolog.Logger) *VenueWatcher {
	if path == "" {
		path = "configs/venue.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &VenueWatcher{
		path:     path,
		interval: interval,
		logger:   logger.With().Str("component", "venue_watcher").Str("path", path).Logger(),
	}
}

// OnChange registers a listener. Listeners run in registration order.
func (w *VenueWatcher) OnChange(name string, fn VenueListener) *VenueWatcher {
	w.listeners = append(w.listeners, namedListener{name: name, fn: fn})
	return w
}

// Start loads the venue file once and fails if that first version is
// unusable. Later changes are picked up by a goroutine bound to ctx.
func (w *VenueWatcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("venue config: %w", err)
	}
	venue, err := LoadVenueConfig(w.path)
	if err != nil {
		return err
	}
	w.apply(ctx, venue, info.ModTime())

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll(ctx)
			}
		}
	}()
	return nil
}

// poll reloads the file when its modification time moved past the last
// applied or rejected version. It reports whether a new venue was applied.
func (w *VenueWatcher) poll(ctx context.Context) bool {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Debug().Err(err).Msg("venue config not readable, keeping current")
		return false
	}
	mod := info.ModTime()
	if !mod.After(w.applied) || mod.Equal(w.rejected) {
		return false
	}

	venue, err := LoadVenueConfig(w.path)
	if err != nil {
		w.rejected = mod
		w.logger.Error().Err(err).Time("modified", mod).Msg("venue config reload rejected, keeping current")
		return false
	}
	w.apply(ctx, venue, mod)
	return true
}

func (w *VenueWatcher) apply(ctx context.Context, venue *VenueConfig, mod time.Time) {
	w.applied = mod
	w.rejected = time.Time{}
	for _, l := range w.listeners {
		if err := l.fn(ctx, venue); err != nil {
			w.logger.Warn().Err(err).Str("listener", l.name).Msg("venue listener failed")
		}
	}
	w.logger.Info().Str("venue", venue.String()).Time("modified", mod).Msg("venue configuration applied")
}
