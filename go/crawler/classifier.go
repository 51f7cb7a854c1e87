package crawler

import (
	"encoding/json"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/KevinXing/housing-alert/go/listing"
)

// Phrases are the markers the listing site uses to render availability.
// ButtonClass selects the selection toggle among the page's buttons; an empty
// ButtonClass considers every button.
type Phrases struct {
	Add         string
	Unavailable string
	ButtonClass string
	SpanClass   string
}

var DefaultPhrases = Phrases{
	Add:         "Ajouter à ma sélection",
	Unavailable: "Indisponible",
	ButtonClass: "fr-btn",
	SpanClass:   "svelte-eq6rxe",
}

var (
	availabilityKeys = map[string]bool{
		"available":    true,
		"isavailable":  true,
		"is_available": true,
		"availability": true,
	}
	availabilityLiteral = regexp.MustCompile(`(?i)["']?\b(?:is_?available|available|availability)["']?\s*:\s*(true|false)\b`)
	whitespace          = regexp.MustCompile(`\s+`)
)

// detector inspects a parsed page and returns Unknown when it has no opinion.
type detector struct {
	name   string
	detect func(doc *goquery.Document, p Phrases) listing.Status
}

// Detectors run in this order and the first definite answer wins.
var detectors = []detector{
	{name: "button", detect: detectButton},
	{name: "span", detect: detectSpan},
	{name: "structured-data", detect: detectStructuredData},
}

// Classifier decides whether a listing page currently offers the housing.
type Classifier struct {
	Phrases Phrases
	logger  zerolog.Logger
}

func NewClassifier(phrases Phrases, logger zerolog.Logger) *Classifier {
	return &Classifier{
		Phrases: phrases,
		logger:  logger.With().Str("module", "classifier").Logger(),
	}
}

func (c *Classifier) Classify(content string) listing.Status {
	status, by := classify(content, c.Phrases)
	if status == listing.Unknown {
		c.logger.Warn().Int("content_length", len(content)).Msg("no availability marker found on page")
		return status
	}
	c.logger.Debug().Str("detector", by).Stringer("status", status).Msg("page classified")
	return status
}

func classify(content string, p Phrases) (listing.Status, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return listing.Unknown, ""
	}
	for _, d := range detectors {
		if status := d.detect(doc, p); status != listing.Unknown {
			return status, d.name
		}
	}
	return listing.Unknown, ""
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.ToLower(strings.TrimSpace(whitespace.ReplaceAllString(s, " ")))
}

func detectButton(doc *goquery.Document, p Phrases) listing.Status {
	add, unavailable := normalize(p.Add), normalize(p.Unavailable)
	titles := make([]string, 0)
	texts := make([]string, 0)
	doc.Find("button").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return p.ButtonClass == "" || s.HasClass(p.ButtonClass)
	}).Each(func(_ int, s *goquery.Selection) {
		if title, ok := s.Attr("title"); ok {
			titles = append(titles, normalize(title))
		}
		texts = append(texts, normalize(s.Text()))
	})
	if matchLabel(titles, texts, add) {
		return listing.Available
	}
	if matchLabel(titles, texts, unavailable) {
		return listing.Unavailable
	}
	return listing.Unknown
}

// matchLabel compares titles exactly and visible texts by containment, since
// button text often carries icon labels around the phrase.
func matchLabel(titles, texts []string, phrase string) bool {
	if phrase == "" {
		return false
	}
	for _, title := range titles {
		if title == phrase {
			return true
		}
	}
	for _, text := range texts {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func detectSpan(doc *goquery.Document, p Phrases) listing.Status {
	add, unavailable := normalize(p.Add), normalize(p.Unavailable)
	status := listing.Unknown
	if add == "" || unavailable == "" {
		return status
	}
	doc.Find("span").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return p.SpanClass == "" || s.HasClass(p.SpanClass)
	}).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalize(s.Text())
		switch {
		case strings.Contains(text, add):
			status = listing.Available
		case strings.Contains(text, unavailable):
			status = listing.Unavailable
		default:
			return true
		}
		return false
	})
	return status
}

func detectStructuredData(doc *goquery.Document, _ Phrases) listing.Status {
	status := listing.Unknown
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return true
		}
		var data interface{}
		if json.Unmarshal([]byte(text), &data) == nil {
			if b, ok := findAvailability(data); ok {
				status = statusFromBool(b)
				return false
			}
			return true
		}
		if m := availabilityLiteral.FindStringSubmatch(text); m != nil {
			status = statusFromBool(strings.EqualFold(m[1], "true"))
			return false
		}
		return true
	})
	return status
}

// findAvailability walks decoded JSON for a boolean availability field. Keys
// are visited in sorted order and direct fields are checked before nested
// ones, so a page with several such fields always yields the same answer.
func findAvailability(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for key := range t {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			if b, ok := t[key].(bool); ok && availabilityKeys[strings.ToLower(key)] {
				return b, true
			}
		}
		for _, key := range keys {
			if b, ok := findAvailability(t[key]); ok {
				return b, true
			}
		}
	case []interface{}:
		for _, value := range t {
			if b, ok := findAvailability(value); ok {
				return b, true
			}
		}
	}
	return false, false
}

func statusFromBool(b bool) listing.Status {
	if b {
		return listing.Available
	}
	return listing.Unavailable
}
