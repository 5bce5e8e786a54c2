package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/rules"
)

var (
	isoDateRe = regexp.MustCompile(`\b(20\d{2})-(\d{2})-(\d{2})\b`)
	usDateRe  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(20\d{2})\b`)

	remoteTerms = []string{"virtual", "online", "remote", "webinar", "livestream"}
	paidTerms   = []string{"ticket", "tickets", "price", "pricing", "registration fee", "$", "buy now"}
)

// heuristicExtract pulls what it can from the raw HTML without calling the
// model: document title, meta description, the first two ISO-style dates,
// and keyword hints for remote/paid.
func heuristicExtract(url, rawHTML string) (event.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return event.Candidate{}, err
	}

	cand := event.Candidate{
		URL:               url,
		ExtractionSuccess: true,
		ExtractionMethod:  "heuristic",
	}

	cand.Name = strings.TrimSpace(doc.Find("title").First().Text())
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && og != "" {
		cand.Name = strings.TrimSpace(og)
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		cand.Description = strings.TrimSpace(desc)
	}
	if cand.Description == "" {
		if og, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
			cand.Description = strings.TrimSpace(og)
		}
	}

	body := doc.Find("body").Text()
	start, end := firstTwoDates(body)
	cand.StartDate = rules.ValidateDate(start)
	cand.EndDate = rules.ValidateDate(end)
	if !rules.DateOrdered(cand.StartDate, cand.EndDate) {
		cand.EndDate = ""
	}

	lowerBody := strings.ToLower(body)
	for _, term := range remoteTerms {
		if strings.Contains(lowerBody, term) {
			cand.Remote = true
			break
		}
	}
	for _, term := range paidTerms {
		if strings.Contains(lowerBody, term) {
			cand.IsPaid = true
			break
		}
	}

	if cand.Name == "" {
		return cand, errNoUsableContent
	}
	return cand, nil
}

// firstTwoDates scans text for the first two date-like strings, ISO form
// preferred.
func firstTwoDates(text string) (string, string) {
	matches := isoDateRe.FindAllString(text, 2)
	if len(matches) == 0 {
		matches = usDateRe.FindAllString(text, 2)
	}
	switch len(matches) {
	case 0:
		return "", ""
	case 1:
		return matches[0], ""
	default:
		return matches[0], matches[1]
	}
}
