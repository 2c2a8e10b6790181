// Package stats derives the dashboard counters from the loaded submissions.
package stats

import (
	"strings"
	"time"

	"almondsense/internal/domain"
	"almondsense/internal/lifecycle"
)

// Summary holds counts recomputed from the in-memory submission set.
type Summary struct {
	Total        int                      `json:"total"`
	ByStatus     map[lifecycle.Status]int `json:"by_status"`
	Today        int                      `json:"today"`
	UniqueEmails int                      `json:"unique_emails"`
}

// Summarize counts subs. "Today" is the calendar day of now in now's
// location; creation times are converted to that location first.
func Summarize(subs []domain.Submission, now time.Time) Summary {
	s := Summary{
		Total:    len(subs),
		ByStatus: make(map[lifecycle.Status]int, 3),
	}
	for _, st := range lifecycle.All() {
		s.ByStatus[st] = 0
	}

	y, m, d := now.Date()
	emails := make(map[string]struct{}, len(subs))
	for _, sub := range subs {
		s.ByStatus[sub.Status]++
		cy, cm, cd := sub.CreatedAt.In(now.Location()).Date()
		if cy == y && cm == m && cd == d {
			s.Today++
		}
		emails[strings.ToLower(strings.TrimSpace(sub.Email))] = struct{}{}
	}
	s.UniqueEmails = len(emails)
	return s
}
