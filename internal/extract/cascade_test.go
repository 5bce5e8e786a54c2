package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/event"
)

type fakeCompleter struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	idx := f.calls
	f.calls++
	f.prompts = append(f.prompts, user)
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	resp := ""
	if idx < len(f.responses) {
		resp = f.responses[idx]
	}
	return resp, err
}

func TestCascadePrimarySucceeds(t *testing.T) {
	t.Parallel()

	svc := &fakeCompleter{responses: []string{
		`{"name": "GenAI Summit", "start_date": "2025-09-10", "end_date": "2025-09-12",
		  "location": "San Francisco, CA", "remote": false,
		  "speakers": [{"name": "Ada Lovelace"}], "themes": ["ai"]}`,
	}}
	c := NewCascade(svc, zap.NewNop())

	cand, err := c.Extract(context.Background(), "https://example.com/summit",
		event.FetchResult{RenderedText: "GenAI Summit, September 10-12 2025, SF"}, event.TypeConference)
	require.NoError(t, err)
	require.True(t, cand.ExtractionSuccess)
	require.Equal(t, "primary", cand.ExtractionMethod)
	require.Equal(t, "GenAI Summit", cand.Name)
	require.Equal(t, "2025-09-10", cand.StartDate)
	require.Equal(t, 1, svc.calls, "gap-fill is skipped when speakers are present")
}

func TestCascadeFallsBackToSimplified(t *testing.T) {
	t.Parallel()

	svc := &fakeCompleter{
		responses: []string{
			"not json at all",
			`{"name": "DevCon", "start_date": "2025-08-01", "location": "NYC"}`,
			`{"organizers": ["DevCon Org"], "speakers": [], "sponsors": []}`,
		},
	}
	c := NewCascade(svc, zap.NewNop())

	cand, err := c.Extract(context.Background(), "https://example.com/devcon",
		event.FetchResult{RenderedText: "DevCon page"}, event.TypeConference)
	require.NoError(t, err)
	require.True(t, cand.ExtractionSuccess)
	require.Equal(t, "simplified", cand.ExtractionMethod)
	require.Equal(t, []string{"DevCon Org"}, cand.Organizers)
}

func TestCascadeFallsBackToHeuristic(t *testing.T) {
	t.Parallel()

	svc := &fakeCompleter{errs: []error{
		errors.New("service down"), errors.New("service down"),
	}}
	c := NewCascade(svc, zap.NewNop())

	html := `<html><head><title>AI Hack Night</title>
	<meta name="description" content="An evening hackathon."></head>
	<body>Join us 2025-10-04 to 2025-10-05. Fully online event. Tickets: $10</body></html>`

	cand, err := c.Extract(context.Background(), "https://example.com/hack-night",
		event.FetchResult{RenderedText: "text", RawHTML: html}, event.TypeHackathon)
	require.NoError(t, err)
	require.True(t, cand.ExtractionSuccess)
	require.Equal(t, "heuristic", cand.ExtractionMethod)
	require.Equal(t, "AI Hack Night", cand.Name)
	require.Equal(t, "An evening hackathon.", cand.Description)
	require.Equal(t, "2025-10-04", cand.StartDate)
	require.Equal(t, "2025-10-05", cand.EndDate)
	require.True(t, cand.Remote)
	require.True(t, cand.IsPaid)
}

func TestCascadeStubIsLastResort(t *testing.T) {
	t.Parallel()

	c := NewCascade(nil, zap.NewNop())

	cand, err := c.Extract(context.Background(), "https://example.com/events/ml-conf-2025",
		event.FetchResult{}, event.TypeConference)
	require.NoError(t, err)
	require.False(t, cand.ExtractionSuccess)
	require.Equal(t, "minimal", cand.ExtractionMethod)
	require.Equal(t, "Ml Conf 2025", cand.Name)
	require.Equal(t, "https://example.com/events/ml-conf-2025", cand.URL)
}

func TestCascadeRevalidatesDates(t *testing.T) {
	t.Parallel()

	svc := &fakeCompleter{responses: []string{
		`{"name": "Backwards Conf", "start_date": "2025-09-12", "end_date": "2025-09-10",
		  "registration_deadline": "2024-13-40", "speakers": [{"name": "x y"}]}`,
	}}
	c := NewCascade(svc, zap.NewNop())

	cand, err := c.Extract(context.Background(), "https://example.com/conf",
		event.FetchResult{RenderedText: "content"}, event.TypeConference)
	require.NoError(t, err)
	require.Equal(t, "2025-09-12", cand.StartDate)
	require.Equal(t, "", cand.EndDate, "end before start is dropped")
	require.Equal(t, "", cand.RegistrationDeadline, "impossible date is dropped")
}

func TestCascadeRejectsTrivialNames(t *testing.T) {
	t.Parallel()

	svc := &fakeCompleter{responses: []string{
		`{"name": "TBD"}`,
		`{"name": ""}`,
	}}
	c := NewCascade(svc, zap.NewNop())

	cand, err := c.Extract(context.Background(), "https://example.com/events/foo",
		event.FetchResult{RenderedText: "content"}, event.TypeConference)
	require.NoError(t, err)
	require.Equal(t, "minimal", cand.ExtractionMethod, "trivial names fall through the model strategies")
}

func TestTruncatePreferringKeywords(t *testing.T) {
	t.Parallel()

	short := "short text"
	require.Equal(t, short, truncatePreferringKeywords(short, 100))

	long := make([]byte, 0, 3000)
	for i := 0; i < 2500; i++ {
		long = append(long, 'a')
	}
	text := string(long) + " Location: San Francisco Moscone Center"
	got := truncatePreferringKeywords(text, 1000)
	require.LessOrEqual(t, len(got), 1010)
	require.Contains(t, got, "ocation", "logistics region past the cutoff is preserved")
}
