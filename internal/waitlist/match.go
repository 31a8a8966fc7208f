package waitlist

import (
	"sort"

	"tischbuch/internal/model"
)

// Candidates returns the OPEN entries on date that fit into a freed table
// for partySize guests, best match first: highest priority, then earliest
// creation, then ID.
func Candidates(entries []model.WaitlistEntry, date string, partySize, slack int) []model.WaitlistEntry {
	out := make([]model.WaitlistEntry, 0, len(entries))
	for _, e := range entries {
		if e.Status != model.WaitlistOpen || e.Date != date {
			continue
		}
		if e.PartySize > partySize+slack {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}
