// Package meeting holds the calendar-facing model. Where the meetings come
// from (account linking, event mapping) is the import collaborator's problem;
// the capture side only ever reads URL and Title.
package meeting

import "time"

type Meeting struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Platform  string        `json:"platform"`
	Time      time.Time     `json:"time"`
	Duration  time.Duration `json:"duration"`
	URL       string        `json:"url"`
	Attendees []string      `json:"attendees"`
}

// Source supplies the meetings shown on the calendar screen.
type Source interface {
	Meetings() ([]Meeting, error)
}
