// Package school holds the campus personas the assistant can take on.
package school

import (
	"fmt"
	"strings"
	"sync"
)

// School describes one supported campus.
type School struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Short       string   `json:"short"`
	Mascot      string   `json:"mascot"`
	Colors      []string `json:"colors"`
	City        string   `json:"city"`
	Locations   []string `json:"common_locations"`
	Personality string   `json:"-"`
}

// DefaultID is used when the configured school is unknown.
const DefaultID = "gmu"

var catalog = []School{
	{
		ID:     "gmu",
		Name:   "George Mason University",
		Short:  "Mason",
		Mascot: "The Patriot",
		Colors: []string{"green", "gold"},
		City:   "Fairfax, VA",
		Locations: []string{
			"Johnson Center (JC)", "Fenwick Library", "Innovation Hall", "EagleBank Arena",
			"The Hub", "Dewberry Hall", "RAC (Recreation Center)", "North Quad",
		},
		Personality: "You're the campus buddy at George Mason University in Fairfax, VA. " +
			"Students call the main hub the JC (Johnson Center). " +
			"The mascot is The Patriot. School colors are green and gold. " +
			"Mason is known for its diverse, welcoming community.",
	},
	{
		ID:     "jmu",
		Name:   "James Madison University",
		Short:  "JMU",
		Mascot: "Duke Dog",
		Colors: []string{"purple", "gold"},
		City:   "Harrisonburg, VA",
		Locations: []string{
			"Festival Conference Center", "Carrier Library", "ISAT Building", "Atlantic Union Bank Center",
			"D-Hall (Dining)", "The Quad", "University Recreation Center (UREC)", "Wilson Hall",
		},
		Personality: "You're the campus buddy at James Madison University in Harrisonburg, VA. " +
			"Students love D-Hall and The Quad. " +
			"The mascot is Duke Dog. School colors are purple and gold. " +
			"JMU is known for its strong school spirit and beautiful Shenandoah Valley setting.",
	},
	{
		ID:     "uva",
		Name:   "University of Virginia",
		Short:  "UVA",
		Mascot: "Cavalier (Wahoo)",
		Colors: []string{"orange", "navy blue"},
		City:   "Charlottesville, VA",
		Locations: []string{
			"The Rotunda", "Alderman Library", "Newcomb Hall", "John Paul Jones Arena",
			"The Corner", "Lawn Rooms", "Rice Hall", "Scott Stadium",
		},
		Personality: "You're the campus buddy at the University of Virginia in Charlottesville, VA. " +
			"Students call themselves Wahoos (or Hoos). " +
			"The mascot is the Cavalier. School colors are orange and navy blue. " +
			"UVA is founded by Thomas Jefferson and students cherish the Lawn and The Corner.",
	},
	{
		ID:     "vt",
		Name:   "Virginia Tech",
		Short:  "VT",
		Mascot: "HokieBird",
		Colors: []string{"maroon", "burnt orange"},
		City:   "Blacksburg, VA",
		Locations: []string{
			"Torgersen Hall", "Newman Library", "Squires Student Center", "Cassell Coliseum",
			"Lane Stadium", "The Drillfield", "McBryde Hall", "War Memorial Hall",
		},
		Personality: "You're the campus buddy at Virginia Tech in Blacksburg, VA. " +
			"Students are Hokies. Let's Go! " +
			"The mascot is the HokieBird. School colors are maroon and burnt orange. " +
			"VT is known for Ut Prosim (That I May Serve) and incredible game day energy.",
	},
}

// Registry tracks the active school. Every successful switch bumps the
// generation so sessions can tell their history was built under another persona.
type Registry struct {
	mu         sync.RWMutex
	active     string
	generation uint64
	byID       map[string]School
}

// NewRegistry creates a registry with initial as the active school, falling
// back to DefaultID when initial is unknown.
func NewRegistry(initial string) *Registry {
	r := &Registry{byID: make(map[string]School, len(catalog))}
	for _, s := range catalog {
		r.byID[s.ID] = s
	}
	id := normalize(initial)
	if _, ok := r.byID[id]; !ok {
		id = DefaultID
	}
	r.active = id
	return r
}

// Active returns the active school.
func (r *Registry) Active() School {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[r.active]
}

// ActiveID returns the identifier of the active school.
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Generation returns the persona generation counter.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Set switches the active school.
func (r *Registry) Set(id string) (School, error) {
	id = normalize(id)
	s, ok := r.byID[id]
	if !ok {
		return School{}, fmt.Errorf("unknown school: %s", id)
	}

	r.mu.Lock()
	if r.active != id {
		r.active = id
		r.generation++
	}
	r.mu.Unlock()
	return s, nil
}

// List returns all supported schools in a fixed order.
func (r *Registry) List() []School {
	out := make([]School, len(catalog))
	copy(out, catalog)
	return out
}

// IDs returns the supported school identifiers.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(catalog))
	for _, s := range catalog {
		ids = append(ids, s.ID)
	}
	return ids
}

// PromptContext returns the active school's personality text.
func (r *Registry) PromptContext() string {
	return r.Active().Personality
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
