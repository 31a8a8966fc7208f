// Package report aggregates reservations for the daily guest overview.
package report

import (
	"context"
	"fmt"
	"sort"

	"tischbuch/internal/apperr"
	"tischbuch/internal/model"
	"tischbuch/internal/timeofday"
)

// HourBucket sums the guests starting within one hour of the day.
type HourBucket struct {
	Hour         string `json:"hour"` // "11"
	Guests       int    `json:"guests"`
	Reservations int    `json:"reservations"`
}

// ReservationLister returns the non-archived reservations of a date.
type ReservationLister interface {
	ReservationsOn(ctx context.Context, date string) ([]model.Reservation, error)
}

// Aggregate groups reservations by the hour of their start time. Archived
// reservations and those in NO_SHOW or STORNIERT are ignored; buckets are
// sorted by hour.
func Aggregate(reservations []model.Reservation) []HourBucket {
	byHour := make(map[int]*HourBucket)
	for _, r := range reservations {
		if r.Archived || !r.Status.CountsAsGuest() {
			continue
		}
		m, err := timeofday.ParseMinutes(r.Time)
		if err != nil {
			continue
		}
		h := m / 60
		b, ok := byHour[h]
		if !ok {
			b = &HourBucket{Hour: fmt.Sprintf("%02d", h)}
			byHour[h] = b
		}
		b.Guests += r.PartySize
		b.Reservations++
	}

	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	out := make([]HourBucket, 0, len(hours))
	for _, h := range hours {
		out = append(out, *byHour[h])
	}
	return out
}

// Service builds reports from stored reservations.
type Service struct {
	reservations ReservationLister
}

func NewService(reservations ReservationLister) *Service {
	return &Service{reservations: reservations}
}

// HourlyGuestOverview returns the hourly guest buckets of date.
func (s *Service) HourlyGuestOverview(ctx context.Context, date string) ([]HourBucket, error) {
	buckets, _, err := s.day(ctx, date)
	return buckets, err
}

func (s *Service) day(ctx context.Context, date string) ([]HourBucket, []model.Reservation, error) {
	d, err := timeofday.ParseDate(date, nil)
	if err != nil {
		return nil, nil, apperr.Validation("date", "%v", err)
	}
	list, err := s.reservations.ReservationsOn(ctx, d.Format(timeofday.DateLayout))
	if err != nil {
		return nil, nil, fmt.Errorf("reservations for %s: %w", date, err)
	}
	return Aggregate(list), list, nil
}
