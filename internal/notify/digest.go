package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tischbuch/internal/report"
	"tischbuch/internal/timeofday"
)

// Overview returns the hourly guest overview of a date.
type Overview interface {
	HourlyGuestOverview(ctx context.Context, date string) ([]report.HourBucket, error)
}

// StartDigest sends tomorrow's hourly guest overview to the manager chats
// every day at hour (venue local time) until ctx is cancelled.
func (n *Notifier) StartDigest(ctx context.Context, overview Overview, hour int, loc func() *time.Location) {
	if n == nil || overview == nil {
		return
	}

	go func() {
		timer := time.NewTimer(timeUntilNextHour(time.Now().In(loc()), hour))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				n.sendDigest(ctx, overview, time.Now().In(loc()))
				timer.Reset(timeUntilNextHour(time.Now().In(loc()), hour))
			}
		}
	}()
}

func (n *Notifier) sendDigest(ctx context.Context, overview Overview, now time.Time) {
	date := now.AddDate(0, 0, 1).Format(timeofday.DateLayout)
	buckets, err := overview.HourlyGuestOverview(ctx, date)
	if err != nil {
		n.logger.Error().Err(err).Str("date", date).Msg("digest: load overview")
		return
	}
	if err := n.broadcast(ctx, formatDigest(date, buckets)); err != nil {
		n.logger.Warn().Err(err).Msg("digest not delivered to every chat")
	}
}

func formatDigest(date string, buckets []report.HourBucket) string {
	if len(buckets) == 0 {
		return fmt.Sprintf("Gäste am %s: keine Reservierungen.", date)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Gäste am %s:\n", date)
	total := 0
	for _, h := range buckets {
		fmt.Fprintf(&b, "%s:00  %d Gäste (%d Res.)\n", h.Hour, h.Guests, h.Reservations)
		total += h.Guests
	}
	fmt.Fprintf(&b, "Summe: %d Gäste", total)
	return b.String()
}

func timeUntilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
