// Package filter decides which extracted candidates become stored records.
// Every rejection names the stage and a human-readable reason so runs can
// be audited afterwards.
package filter

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/rules"
)

// Decision is the outcome of one stage or of the whole chain.
type Decision struct {
	Accept bool
	Stage  string
	Reason string
	// NeedsReview marks candidates accepted under the fail-open policy
	// when semantic validation was unavailable.
	NeedsReview bool
}

func accept() Decision { return Decision{Accept: true} }

func reject(stage, reason string) Decision {
	return Decision{Accept: false, Stage: stage, Reason: reason}
}

// Stage is one ordered check in the chain.
type Stage interface {
	Name() string
	Check(ctx context.Context, cand event.Candidate) Decision
}

// Chain runs stages in order and short-circuits on the first rejection.
type Chain struct {
	eventType event.Type
	stages    []Stage
	logger    *zap.Logger
}

// NewChain assembles the standard stage order for one event type.
func NewChain(eventType event.Type, validator event.Validator, clock event.Clock, logger *zap.Logger) *Chain {
	if clock == nil {
		clock = event.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	typeRules := rules.ForType(eventType)
	stages := []Stage{
		&urlPatternStage{},
		&keywordStage{rules: typeRules},
		&locationStage{rules: typeRules},
		&futureDateStage{rules: typeRules, clock: clock},
		newDedupStage(),
	}
	if validator != nil {
		stages = append(stages, &semanticStage{validator: validator, eventType: eventType, logger: logger})
	}
	return &Chain{eventType: eventType, stages: stages, logger: logger.Named("filter")}
}

// Evaluate runs the candidate through every stage.
func (c *Chain) Evaluate(ctx context.Context, cand event.Candidate) Decision {
	needsReview := false
	for _, stage := range c.stages {
		d := stage.Check(ctx, cand)
		if !d.Accept {
			c.logger.Debug("candidate rejected",
				zap.String("url", cand.URL),
				zap.String("stage", d.Stage),
				zap.String("reason", d.Reason))
			return d
		}
		if d.NeedsReview {
			needsReview = true
		}
	}
	out := accept()
	out.NeedsReview = needsReview
	return out
}

type urlPatternStage struct{}

func (s *urlPatternStage) Name() string { return "url_pattern" }

func (s *urlPatternStage) Check(_ context.Context, cand event.Candidate) Decision {
	if !rules.IsValidEventURL(cand.URL) {
		return reject(s.Name(), "url does not look like an event page")
	}
	return accept()
}

type keywordStage struct {
	rules rules.TypeRules
}

func (s *keywordStage) Name() string { return "keyword_relevance" }

func (s *keywordStage) Check(_ context.Context, cand event.Candidate) Decision {
	text := strings.Join(append([]string{cand.Name, cand.Description, cand.URL}, cand.Themes...), " ")
	if !s.rules.MatchesKeywords(text) {
		return reject(s.Name(), "no relevant keywords in name, description, url, or themes")
	}
	return accept()
}

type locationStage struct {
	rules rules.TypeRules
}

func (s *locationStage) Name() string { return "location" }

func (s *locationStage) Check(_ context.Context, cand event.Candidate) Decision {
	if !s.rules.LocationAllowed(cand.Location, cand.Remote) {
		return reject(s.Name(), "location outside target areas: "+orNone(cand.Location))
	}
	return accept()
}

type futureDateStage struct {
	rules rules.TypeRules
	clock event.Clock
}

func (s *futureDateStage) Name() string { return "future_date" }

func (s *futureDateStage) Check(_ context.Context, cand event.Candidate) Decision {
	if cand.StartDate == "" {
		if s.rules.AcceptUnknownDate {
			return accept()
		}
		return reject(s.Name(), "start date unknown")
	}
	if !rules.IsFutureDate(cand.StartDate, s.clock.Now()) {
		return reject(s.Name(), "event already started: "+cand.StartDate)
	}
	return accept()
}

// dedupStage rejects URLs already accepted earlier in the same run. The
// durable cross-run dedup lives in the ledger and the store's upsert.
type dedupStage struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newDedupStage() *dedupStage {
	return &dedupStage{seen: make(map[string]struct{})}
}

func (s *dedupStage) Name() string { return "dedup" }

func (s *dedupStage) Check(_ context.Context, cand event.Candidate) Decision {
	key := cand.URL
	if normalized, err := event.NormalizeURL(cand.URL); err == nil {
		key = normalized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[key]; dup {
		return reject(s.Name(), "duplicate of a url already accepted this run")
	}
	s.seen[key] = struct{}{}
	return accept()
}

// semanticStage asks the external validator to confirm the candidate. When
// the service is unavailable the candidate passes, flagged for review.
type semanticStage struct {
	validator event.Validator
	eventType event.Type
	logger    *zap.Logger
}

func (s *semanticStage) Name() string { return "semantic_validation" }

func (s *semanticStage) Check(ctx context.Context, cand event.Candidate) Decision {
	ok, err := s.validator.Confirm(ctx, cand, s.eventType)
	if err != nil {
		s.logger.Warn("validation service unavailable, accepting for review",
			zap.String("url", cand.URL), zap.Error(err))
		d := accept()
		d.NeedsReview = true
		return d
	}
	if !ok {
		return reject(s.Name(), "validator judged this not to be a real event")
	}
	return accept()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
