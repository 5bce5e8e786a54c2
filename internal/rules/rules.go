// Package rules holds the pure decision rules for event candidates:
// date validation, location policy, URL and keyword heuristics, and
// per-domain reputation scores. Everything here is side-effect free.
package rules

import (
	"strings"

	"github.com/eventscout/eventscout/internal/event"
)

// TypeRules bundles the per-event-type policy knobs.
type TypeRules struct {
	EventType         event.Type
	Keywords          []string
	TargetLocations   []string
	ExcludedLocations []string
	TrustedDomains    map[string]float64
	AcceptUnknownDate bool
	MaxResults        int
}

// ForType returns the rule set for the given event type.
func ForType(t event.Type) TypeRules {
	switch t {
	case event.TypeHackathon:
		return hackathonRules
	default:
		return conferenceRules
	}
}

var conferenceRules = TypeRules{
	EventType: event.TypeConference,
	Keywords: []string{
		"conference", "summit", "symposium", "workshop", "expo", "meetup", "demo day",
		"generative ai", "genai", "llm", "large language model", "chatgpt", "gpt",
		"foundation models", "transformer", "prompt engineering", "ai agent",
		"artificial intelligence", "machine learning", "deep learning", "neural network",
		"ai research", "ai safety", "ai ethics", "ai startup", "ai developer",
		"tech", "technology", "startup", "innovation", "developer", "founder",
		"venture capital", "pitch", "product launch",
	},
	TargetLocations: []string{
		"san francisco", "sf", "bay area", "silicon valley", "palo alto",
		"mountain view", "sunnyvale", "cupertino", "redwood city", "san jose",
		"santa clara",
		"new york", "nyc", "manhattan", "brooklyn", "queens", "bronx",
		"new york city", "ny",
	},
	ExcludedLocations: []string{
		"virtual", "online", "remote", "worldwide", "global", "digital",
		"webinar", "livestream", "streaming", "zoom", "teams",
	},
	TrustedDomains: map[string]float64{
		"lu.ma": 0.95, "eventbrite.com": 0.9, "meetup.com": 0.8,
		"ieee.org": 0.95, "acm.org": 0.95, "oreilly.com": 0.9,
		"techcrunch.com": 0.85, "aiml.events": 0.85, "techmeme.com": 0.75,
		"luma.com": 0.8, "conference.com": 0.7, "tech.events": 0.8,
	},
	AcceptUnknownDate: false,
	MaxResults:        200,
}

var hackathonRules = TypeRules{
	EventType: event.TypeHackathon,
	Keywords: []string{
		"hackathon", "hack", "coding challenge", "programming contest",
		"developer challenge", "coding competition", "tech challenge",
	},
	TargetLocations: []string{
		"san francisco", "sf", "bay area", "silicon valley", "california", "ca",
		"new york", "ny", "nyc", "new york city", "manhattan", "brooklyn",
		"online", "virtual", "remote", "worldwide", "global",
	},
	ExcludedLocations: nil,
	TrustedDomains: map[string]float64{
		"devpost.com":    0.95,
		"mlh.io":         0.95,
		"eventbrite.com": 0.7,
		"hackerearth.com": 0.8,
		"challengepost.com": 0.9,
	},
	AcceptUnknownDate: true,
	MaxResults:        60,
}

// DomainReputation returns the provisional trust score for a host, or the
// fallback when the host is unknown. The leading www. is ignored.
func (r TypeRules) DomainReputation(host string, fallback float64) float64 {
	if score, ok := r.TrustedDomains[event.RegistrableDomain(host)]; ok {
		return score
	}
	return fallback
}

// MatchesKeywords reports whether text contains at least one of the rule
// set's keywords. Matching is case-insensitive substring matching.
func (r TypeRules) MatchesKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range r.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
