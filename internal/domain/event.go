package domain

import "time"

// Event is a campus event from the seed catalog.
type Event struct {
	Title       string   `json:"title"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Location    string   `json:"location"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

// CalendarItem is a reminder or event stored in the local calendar.
type CalendarItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
	Notes string `json:"notes,omitempty"`
}

// StudySession is a Pomodoro-style focus timer.
type StudySession struct {
	ID          string     `json:"session_id"`
	Topic       string     `json:"topic"`
	DurationMin int        `json:"duration_min"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	Active      bool       `json:"active"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
	ElapsedMin  float64    `json:"elapsed_min,omitempty"`
}

// Stop marks the session finished at now and records the elapsed minutes,
// rounded to one decimal place.
func (s *StudySession) Stop(now time.Time) float64 {
	elapsed := now.Sub(s.StartTime).Minutes()
	rounded := float64(int64(elapsed*10+0.5)) / 10
	s.Active = false
	s.StoppedAt = &now
	s.ElapsedMin = rounded
	return rounded
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseISO parses the ISO 8601 forms the frontend and seed data use. Values
// without an offset are interpreted in local time.
func ParseISO(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range isoLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// FormatISO renders t the way ParseISO reads naive local timestamps.
func FormatISO(t time.Time) string {
	return t.Format("2006-01-02T15:04:05")
}
