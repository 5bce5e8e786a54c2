package extract

import (
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/eventscout/eventscout/internal/event"
)

const speakerSchemaJSON = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"company": {"type": "string"},
		"title": {"type": "string"}
	},
	"required": ["name"]
}`

const priceTierSchemaJSON = `{
	"type": "object",
	"properties": {
		"label": {"type": "string"},
		"price": {"type": "string", "minLength": 1}
	},
	"required": ["price"]
}`

var (
	speakerSchema   = jsonschema.MustCompileString("speaker.json", speakerSchemaJSON)
	priceTierSchema = jsonschema.MustCompileString("price_tier.json", priceTierSchemaJSON)
)

// speakersFromField validates each list entry against the speaker schema
// and silently drops entries that fail. A bad entry never sinks the whole
// extraction.
func speakersFromField(m map[string]any, key string) []event.Speaker {
	items, ok := m[key].([]any)
	if !ok {
		return nil
	}
	var out []event.Speaker
	for _, item := range items {
		// Tolerate bare-name entries.
		if s, isStr := item.(string); isStr && s != "" {
			out = append(out, event.Speaker{Name: s})
			continue
		}
		entry, isObj := item.(map[string]any)
		if !isObj {
			continue
		}
		if err := speakerSchema.Validate(entry); err != nil {
			continue
		}
		out = append(out, event.Speaker{
			Name:    stringField(entry, "name"),
			Company: stringField(entry, "company"),
			Title:   stringField(entry, "title"),
		})
	}
	return out
}

// priceTiersFromField validates each price entry, dropping bad ones.
func priceTiersFromField(m map[string]any, key string) []event.PriceTier {
	items, ok := m[key].([]any)
	if !ok {
		return nil
	}
	var out []event.PriceTier
	for _, item := range items {
		if s, isStr := item.(string); isStr && s != "" {
			out = append(out, event.PriceTier{Price: s})
			continue
		}
		entry, isObj := item.(map[string]any)
		if !isObj {
			continue
		}
		if err := priceTierSchema.Validate(entry); err != nil {
			continue
		}
		out = append(out, event.PriceTier{
			Label: stringField(entry, "label"),
			Price: stringField(entry, "price"),
		})
	}
	return out
}
