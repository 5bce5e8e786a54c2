package rules

import (
	"strings"
)

// Keywords that mark a URL as an administrative or social page rather than
// an event page.
var invalidURLKeywords = []string{
	"login", "privacy", "terms", "about", "help", "contact", "careers",
	"support", "settings", "register", "signup", "logout", "account",
	"linkedin.com", "twitter.com", "facebook.com", "instagram.com",
	"youtube.com", "github.com", "/api/", "/static/", "redirect?",
	"community-guidelines", "california-consumer-privacy", "legal/",
}

// Keywords of which at least one must appear in a plausible event URL.
var validURLKeywords = []string{
	"hackathon", "event", "challenge", "competition", "contest",
	"summit", "conference", "workshop", "coding", "programming",
	"hack", "tech", "innovation", "startup", "dev", "developer",
}

// Path fragments that mark a URL as an individual event page.
var eventPathKeywords = []string{
	"/event/", "/conference/", "/summit/", "/symposium/", "/workshop/",
	"/meeting/", "/expo/", "/forum/", "/gathering/", "events/", "conferences/",
	"/hackathons/", "/hackathon/",
}

// Fragments that suggest a page is an aggregator or listing page worth
// expanding one level.
var aggregatorKeywords = []string{
	"events", "conferences", "calendar", "listing", "directory",
	"upcoming", "schedule", "index", "list", "all-events",
}

// IsValidEventURL rejects generic and administrative pages and requires at
// least one event-related keyword somewhere in the URL.
func IsValidEventURL(url string) bool {
	if url == "" {
		return false
	}
	lower := strings.ToLower(url)
	for _, kw := range invalidURLKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	for _, kw := range validURLKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// LooksLikeEventPage reports whether the URL path points at an individual
// event rather than a listing.
func LooksLikeEventPage(url string) bool {
	lower := strings.ToLower(url)
	for _, kw := range eventPathKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// LooksLikeAggregator reports whether the URL probably lists many events.
func LooksLikeAggregator(url string) bool {
	lower := strings.ToLower(url)
	for _, kw := range aggregatorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
