package filter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/event"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeValidator struct {
	verdict bool
	err     error
	calls   int
}

func (f *fakeValidator) Confirm(ctx context.Context, cand event.Candidate, t event.Type) (bool, error) {
	f.calls++
	return f.verdict, f.err
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func goodConference() event.Candidate {
	return event.Candidate{
		URL:         "https://lu.ma/event/genai-summit",
		Name:        "GenAI Summit",
		Description: "Two days of talks on generative AI.",
		StartDate:   "2025-09-10",
		EndDate:     "2025-09-11",
		Location:    "San Francisco, CA",
		Themes:      []string{"ai"},
	}
}

func newConfChain(v event.Validator) *Chain {
	return NewChain(event.TypeConference, v, fixedClock{t: testNow}, zap.NewNop())
}

func TestChainAcceptsGoodConference(t *testing.T) {
	t.Parallel()

	validator := &fakeValidator{verdict: true}
	chain := newConfChain(validator)

	d := chain.Evaluate(context.Background(), goodConference())
	require.True(t, d.Accept)
	require.False(t, d.NeedsReview)
	require.Equal(t, 1, validator.calls)
}

func TestChainRejectsBadURL(t *testing.T) {
	t.Parallel()

	chain := newConfChain(&fakeValidator{verdict: true})
	cand := goodConference()
	cand.URL = "https://example.com/privacy"

	d := chain.Evaluate(context.Background(), cand)
	require.False(t, d.Accept)
	require.Equal(t, "url_pattern", d.Stage)
}

func TestChainRejectsIrrelevantContent(t *testing.T) {
	t.Parallel()

	chain := newConfChain(&fakeValidator{verdict: true})
	cand := goodConference()
	// The url counts toward relevance too, so it must be keyword-free here.
	cand.URL = "https://lu.ma/event/sourdough-evening"
	cand.Name = "Sourdough Baking Evening"
	cand.Description = "Bring your own starter."
	cand.Themes = nil

	d := chain.Evaluate(context.Background(), cand)
	require.False(t, d.Accept)
	require.Equal(t, "keyword_relevance", d.Stage)
}

func TestChainKeywordStageConsidersURL(t *testing.T) {
	t.Parallel()

	chain := NewChain(event.TypeHackathon, nil, fixedClock{t: testNow}, zap.NewNop())
	cand := event.Candidate{
		URL:  "https://devpost.com/hackathons/untitled-42",
		Name: "Untitled 42",
	}
	d := chain.Evaluate(context.Background(), cand)
	require.True(t, d.Accept, "the url itself carries the relevance signal")
}

func TestChainRejectsWrongLocation(t *testing.T) {
	t.Parallel()

	chain := newConfChain(&fakeValidator{verdict: true})
	cand := goodConference()
	cand.Location = "Austin, TX"

	d := chain.Evaluate(context.Background(), cand)
	require.False(t, d.Accept)
	require.Equal(t, "location", d.Stage)
}

func TestChainDatePolicyPerType(t *testing.T) {
	t.Parallel()

	confChain := newConfChain(&fakeValidator{verdict: true})
	conf := goodConference()
	conf.StartDate = ""
	conf.EndDate = ""

	d := confChain.Evaluate(context.Background(), conf)
	require.False(t, d.Accept, "conferences without a start date are rejected")
	require.Equal(t, "future_date", d.Stage)

	hackChain := NewChain(event.TypeHackathon, &fakeValidator{verdict: true}, fixedClock{t: testNow}, zap.NewNop())
	hack := event.Candidate{
		URL:  "https://devpost.com/hackathons/open-ended",
		Name: "Open Ended Hackathon",
	}
	d = hackChain.Evaluate(context.Background(), hack)
	require.True(t, d.Accept, "hackathons without a start date are accepted")
}

func TestChainRejectsPastEvents(t *testing.T) {
	t.Parallel()

	chain := newConfChain(&fakeValidator{verdict: true})
	cand := goodConference()
	cand.StartDate = "2025-01-15"

	d := chain.Evaluate(context.Background(), cand)
	require.False(t, d.Accept)
	require.Equal(t, "future_date", d.Stage)
}

func TestChainDeduplicatesWithinRun(t *testing.T) {
	t.Parallel()

	chain := newConfChain(&fakeValidator{verdict: true})

	first := chain.Evaluate(context.Background(), goodConference())
	require.True(t, first.Accept)

	dup := goodConference()
	dup.URL = "HTTPS://LU.MA/event/genai-summit/"
	second := chain.Evaluate(context.Background(), dup)
	require.False(t, second.Accept)
	require.Equal(t, "dedup", second.Stage)
}

func TestChainSemanticRejection(t *testing.T) {
	t.Parallel()

	chain := newConfChain(&fakeValidator{verdict: false})
	d := chain.Evaluate(context.Background(), goodConference())
	require.False(t, d.Accept)
	require.Equal(t, "semantic_validation", d.Stage)
}

func TestChainFailsOpenWhenValidatorDown(t *testing.T) {
	t.Parallel()

	chain := newConfChain(&fakeValidator{err: errors.New("service down")})
	d := chain.Evaluate(context.Background(), goodConference())
	require.True(t, d.Accept, "validator outages do not drop candidates")
	require.True(t, d.NeedsReview)
}

func TestChainWithoutValidator(t *testing.T) {
	t.Parallel()

	chain := NewChain(event.TypeConference, nil, fixedClock{t: testNow}, zap.NewNop())
	d := chain.Evaluate(context.Background(), goodConference())
	require.True(t, d.Accept)
	require.False(t, d.NeedsReview)
}
