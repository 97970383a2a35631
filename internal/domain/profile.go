// Package domain contains core domain types for the Vuddy campus assistant.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Profile holds what the assistant knows about its user.
type Profile struct {
	Interests      []string          `json:"interests"`
	PreferredTimes []string          `json:"preferred_times"`
	StudyHabits    map[string]string `json:"study_habits"`
	Preferences    map[string]string `json:"preferences"`
}

// DefaultProfile returns an empty profile with all collections initialized.
func DefaultProfile() *Profile {
	return &Profile{
		Interests:      []string{},
		PreferredTimes: []string{},
		StudyHabits:    map[string]string{},
		Preferences:    map[string]string{},
	}
}

// Normalize fills nil collections so the profile always serializes with every key.
func (p *Profile) Normalize() {
	if p.Interests == nil {
		p.Interests = []string{}
	}
	if p.PreferredTimes == nil {
		p.PreferredTimes = []string{}
	}
	if p.StudyHabits == nil {
		p.StudyHabits = map[string]string{}
	}
	if p.Preferences == nil {
		p.Preferences = map[string]string{}
	}
}

// PromptContext renders the profile as a short human-readable summary for the
// system prompt.
func (p *Profile) PromptContext() string {
	var parts []string

	if len(p.Interests) > 0 {
		parts = append(parts, "User interests: "+strings.Join(p.Interests, ", "))
	}
	if len(p.PreferredTimes) > 0 {
		parts = append(parts, "Preferred times: "+strings.Join(p.PreferredTimes, ", "))
	}
	if len(p.StudyHabits) > 0 {
		parts = append(parts, "Study habits: "+joinPairs(p.StudyHabits))
	}
	if len(p.Preferences) > 0 {
		parts = append(parts, "Preferences: "+joinPairs(p.Preferences))
	}

	if len(parts) == 0 {
		return "No user profile information available yet."
	}
	return strings.Join(parts, ". ") + "."
}

// joinPairs renders a map as "k: v, k2: v2" in key order.
func joinPairs(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s: %s", k, m[k]))
	}
	return strings.Join(pairs, ", ")
}
