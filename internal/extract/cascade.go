package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/rules"
)

const (
	primaryContentLimit    = 12000
	simplifiedContentLimit = 4000
	gapFillContentLimit    = 8000
)

var errNoUsableContent = errors.New("no usable content")

// ChatCompleter is the slice of ChatService the cascade needs.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Cascade implements event.Extractor with four strategies in descending
// fidelity: primary model call, simplified model call, HTML heuristics,
// and a minimal stub. The cascade itself never fails; only the stub
// produces ExtractionSuccess=false.
type Cascade struct {
	svc    ChatCompleter
	logger *zap.Logger
}

// NewCascade builds the extractor. svc may be nil, in which case the model
// strategies are skipped entirely.
func NewCascade(svc ChatCompleter, logger *zap.Logger) *Cascade {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cascade{svc: svc, logger: logger.Named("extract")}
}

// Extract runs the strategy cascade and returns the best candidate it could
// produce. The error return is always nil; it exists to satisfy the
// Extractor contract for implementations that can fail outright.
func (c *Cascade) Extract(ctx context.Context, pageURL string, content event.FetchResult, eventType event.Type) (event.Candidate, error) {
	text := pageText(content)

	if c.svc != nil && text != "" {
		if cand, err := c.primary(ctx, pageURL, text, eventType); err == nil {
			c.gapFill(ctx, &cand, text)
			return c.finalize(cand, pageURL), nil
		} else if ctx.Err() == nil {
			c.logger.Debug("primary extraction failed", zap.String("url", pageURL), zap.Error(err))
		}

		if cand, err := c.simplified(ctx, pageURL, text, eventType); err == nil {
			c.gapFill(ctx, &cand, text)
			return c.finalize(cand, pageURL), nil
		} else if ctx.Err() == nil {
			c.logger.Debug("simplified extraction failed", zap.String("url", pageURL), zap.Error(err))
		}
	}

	if content.RawHTML != "" {
		if cand, err := heuristicExtract(pageURL, content.RawHTML); err == nil {
			return c.finalize(cand, pageURL), nil
		}
	}

	return c.finalize(minimalStub(pageURL), pageURL), nil
}

func (c *Cascade) primary(ctx context.Context, pageURL, text string, eventType event.Type) (event.Candidate, error) {
	prompt := fmt.Sprintf(primaryPromptTemplate, eventType, pageURL, truncatePreferringKeywords(text, primaryContentLimit))
	raw, err := c.svc.Complete(ctx, extractionSystemPrompt, prompt)
	if err != nil {
		return event.Candidate{}, fmt.Errorf("primary completion: %w", err)
	}
	obj, err := DecodeModelJSON(raw)
	if err != nil {
		return event.Candidate{}, fmt.Errorf("primary response: %w", err)
	}
	cand := candidateFromObject(obj, pageURL)
	if trivialName(cand.Name) {
		return event.Candidate{}, errNoUsableContent
	}
	cand.ExtractionMethod = "primary"
	cand.ExtractionSuccess = true
	return cand, nil
}

func (c *Cascade) simplified(ctx context.Context, pageURL, text string, eventType event.Type) (event.Candidate, error) {
	prompt := fmt.Sprintf(simplifiedPromptTemplate, eventType, truncatePreferringKeywords(text, simplifiedContentLimit))
	raw, err := c.svc.Complete(ctx, extractionSystemPrompt, prompt)
	if err != nil {
		return event.Candidate{}, fmt.Errorf("simplified completion: %w", err)
	}
	obj, err := DecodeModelJSON(raw)
	if err != nil {
		return event.Candidate{}, fmt.Errorf("simplified response: %w", err)
	}
	cand := candidateFromObject(obj, pageURL)
	if trivialName(cand.Name) {
		return event.Candidate{}, errNoUsableContent
	}
	cand.ExtractionMethod = "simplified"
	cand.ExtractionSuccess = true
	return cand, nil
}

// gapFill runs one focused follow-up for organizers, speakers, and sponsors
// when the main pass left all three empty. Best effort: any failure leaves
// the candidate unchanged.
func (c *Cascade) gapFill(ctx context.Context, cand *event.Candidate, text string) {
	if c.svc == nil {
		return
	}
	if len(cand.Organizers) > 0 || len(cand.Speakers) > 0 || len(cand.Sponsors) > 0 {
		return
	}
	prompt := fmt.Sprintf(gapFillPromptTemplate, cand.Name, truncatePreferringKeywords(text, gapFillContentLimit))
	raw, err := c.svc.Complete(ctx, extractionSystemPrompt, prompt)
	if err != nil {
		c.logger.Debug("gap-fill skipped", zap.String("url", cand.URL), zap.Error(err))
		return
	}
	obj, err := DecodeModelJSON(raw)
	if err != nil {
		return
	}
	cand.Organizers = stringListField(obj, "organizers")
	cand.Speakers = speakersFromField(obj, "speakers")
	cand.Sponsors = stringListField(obj, "sponsors")
}

// finalize re-validates dates and ensures the candidate always carries the
// page URL.
func (c *Cascade) finalize(cand event.Candidate, pageURL string) event.Candidate {
	if cand.URL == "" {
		cand.URL = pageURL
	}
	cand.StartDate = rules.ValidateDate(cand.StartDate)
	cand.EndDate = rules.ValidateDate(cand.EndDate)
	cand.RegistrationDeadline = rules.ValidateDate(cand.RegistrationDeadline)
	if !rules.DateOrdered(cand.StartDate, cand.EndDate) {
		cand.EndDate = ""
	}
	return cand
}

// candidateFromObject maps a decoded model object onto a Candidate. All
// field reads are tolerant; malformed list entries are dropped one by one.
func candidateFromObject(obj map[string]any, pageURL string) event.Candidate {
	cand := event.Candidate{
		URL:                  stringField(obj, "url"),
		Name:                 stringField(obj, "name"),
		StartDate:            stringField(obj, "start_date"),
		EndDate:              stringField(obj, "end_date"),
		RegistrationDeadline: stringField(obj, "registration_deadline"),
		RegistrationURL:      stringField(obj, "registration_url"),
		Location:             stringField(obj, "location"),
		City:                 stringField(obj, "city"),
		Remote:               boolField(obj, "remote"),
		Description:          stringField(obj, "description"),
		ShortDescription:     stringField(obj, "short_description"),
		Organizers:           stringListField(obj, "organizers"),
		Sponsors:             stringListField(obj, "sponsors"),
		Themes:               stringListField(obj, "themes"),
		Speakers:             speakersFromField(obj, "speakers"),
		TicketPrices:         priceTiersFromField(obj, "ticket_prices"),
		IsPaid:               boolField(obj, "is_paid"),
	}
	if cand.URL == "" {
		cand.URL = pageURL
	}
	return cand
}

// minimalStub derives a name from the last URL path segment. It is the
// only strategy that reports extraction failure.
func minimalStub(pageURL string) event.Candidate {
	name := ""
	if u, err := url.Parse(pageURL); err == nil {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		last := segments[len(segments)-1]
		last = strings.NewReplacer("-", " ", "_", " ").Replace(last)
		name = titleCase(strings.TrimSpace(last))
	}
	if name == "" {
		name = pageURL
	}
	return event.Candidate{
		URL:               pageURL,
		Name:              name,
		ExtractionSuccess: false,
		ExtractionMethod:  "minimal",
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func trivialName(name string) bool {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 3 {
		return true
	}
	return rules.IsPlaceholder(trimmed)
}

// pageText prefers the rendered/cleaned text when a backend produced it.
func pageText(content event.FetchResult) string {
	if strings.TrimSpace(content.RenderedText) != "" {
		return content.RenderedText
	}
	return content.RawHTML
}

// truncatePreferringKeywords keeps the head of the text but reserves part of
// the budget for the first region past the cutoff that mentions logistics
// keywords, so date and venue details survive truncation on long pages.
func truncatePreferringKeywords(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	head := limit * 3 / 4
	truncated := text[:head]

	tail := strings.ToLower(text[head:])
	for _, kw := range []string{"when:", "where:", "date", "location", "venue", "register", "speaker"} {
		idx := strings.Index(tail, kw)
		if idx < 0 {
			continue
		}
		window := limit - head
		start := head + idx
		end := start + window
		if end > len(text) {
			end = len(text)
		}
		return truncated + "\n...\n" + text[start:end]
	}
	return text[:limit]
}
