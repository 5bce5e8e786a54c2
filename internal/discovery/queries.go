package discovery

import (
	"fmt"

	"github.com/eventscout/eventscout/internal/event"
)

var (
	sfLocations = []string{"San Francisco", "Silicon Valley", "SF", "Palo Alto"}
	nyLocations = []string{"New York", "NYC", "Manhattan", "Brooklyn"}

	conferenceQueryKeywords = []string{
		"AI conference", "tech summit", "machine learning conference", "developer conference",
	}
	hackathonQueryKeywords = []string{
		"hackathon", "coding competition", "tech challenge", "developer contest",
	}
)

// BuildQueries produces the search queries for one event type and year.
// Conferences are pinned to the target metros; hackathons also get
// location-free queries since online ones qualify.
func BuildQueries(eventType event.Type, year int) []string {
	var queries []string
	locations := append(append([]string{}, sfLocations...), nyLocations...)

	switch eventType {
	case event.TypeHackathon:
		for _, kw := range hackathonQueryKeywords {
			for _, loc := range locations {
				queries = append(queries, fmt.Sprintf("%s %s %d", kw, loc, year))
			}
			queries = append(queries, fmt.Sprintf("%q %d", kw, year))
		}
	default:
		for _, kw := range conferenceQueryKeywords {
			for _, loc := range locations {
				queries = append(queries, fmt.Sprintf("%q %s %d", kw, loc, year))
				queries = append(queries, fmt.Sprintf("%s %s %d", kw, loc, year))
			}
		}
	}
	return queries
}
