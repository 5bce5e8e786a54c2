package rules

import (
	"strings"

	"github.com/eventscout/eventscout/internal/event"
)

// LocationAllowed applies the per-type location policy. Hackathons are
// accepted anywhere, online included. Conferences must name a target metro
// and must not look virtual.
func (r TypeRules) LocationAllowed(location string, remote bool) bool {
	if r.EventType == event.TypeHackathon {
		return true
	}
	lower := strings.ToLower(location)
	if remote {
		return false
	}
	for _, term := range r.ExcludedLocations {
		if strings.Contains(lower, term) {
			return false
		}
	}
	if lower == "" {
		return false
	}
	for _, target := range r.TargetLocations {
		if strings.Contains(lower, target) {
			return true
		}
	}
	return false
}
