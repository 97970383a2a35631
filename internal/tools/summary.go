package tools

import (
	"fmt"
	"strconv"
)

// Summary is the one-line description of a tool result shown to the user.
type Summary struct {
	Tool    string `json:"tool"`
	Summary string `json:"summary"`
}

// Summarize describes r for the frontend.
func Summarize(tool string, r Result) string {
	if !r.OK {
		msg := r.Error
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Sprintf("%s failed: %s", tool, msg)
	}

	switch p := r.Payload.(type) {
	case EventsPayload:
		return "Found " + countNoun(len(p.Events), "event")
	case RecommendationsPayload:
		return "Found " + countNoun(len(p.Events), "recommendation")
	case CalendarSummaryPayload:
		return "Found " + countNoun(len(p.Events), "upcoming item")
	case CalendarAddPayload:
		return fmt.Sprintf("Added to calendar (ID: %s)", p.ID)
	case StudyStartPayload:
		return "Started study session until " + p.EndTime
	case StudyStopPayload:
		return "Session ended after " + strconv.FormatFloat(p.ElapsedMin, 'f', 1, 64) + " minutes"
	case SpotifyPayload:
		return "Spotify link generated"
	default:
		return "Done"
	}
}

func countNoun(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
