package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eventscout/eventscout/internal/event"
)

func TestSpeakersFromFieldDropsMalformedEntries(t *testing.T) {
	t.Parallel()

	m := map[string]any{
		"speakers": []any{
			map[string]any{"name": "Ada Lovelace", "company": "Analytical Engines"},
			map[string]any{"company": "No Name Inc"},
			map[string]any{"name": ""},
			"Grace Hopper",
			42,
		},
	}
	got := speakersFromField(m, "speakers")
	require.Equal(t, []event.Speaker{
		{Name: "Ada Lovelace", Company: "Analytical Engines"},
		{Name: "Grace Hopper"},
	}, got)
}

func TestPriceTiersFromFieldDropsMalformedEntries(t *testing.T) {
	t.Parallel()

	m := map[string]any{
		"ticket_prices": []any{
			map[string]any{"label": "Early bird", "price": "$199"},
			map[string]any{"label": "Missing price"},
			"$499",
		},
	}
	got := priceTiersFromField(m, "ticket_prices")
	require.Equal(t, []event.PriceTier{
		{Label: "Early bird", Price: "$199"},
		{Price: "$499"},
	}, got)
}
