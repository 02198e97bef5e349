package provider

import "strings"

// modelPricing holds per-million-token pricing for known models.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// pricing maps model identifiers to their token costs in USD.
var pricing = map[string]modelPricing{
	// OpenAI GPT-3.5 / GPT-4 family
	"gpt-3.5-turbo": {InputPerMillion: 0.50, OutputPerMillion: 1.50},
	"gpt-4-turbo":   {InputPerMillion: 10.0, OutputPerMillion: 30.0},
	"gpt-4":         {InputPerMillion: 30.0, OutputPerMillion: 60.0},

	// OpenAI GPT-4o family
	"gpt-4o":      {InputPerMillion: 2.50, OutputPerMillion: 10.0},
	"gpt-4o-mini": {InputPerMillion: 0.15, OutputPerMillion: 0.60},

	// OpenAI o-series
	"o1":      {InputPerMillion: 15.0, OutputPerMillion: 60.0},
	"o1-mini": {InputPerMillion: 3.0, OutputPerMillion: 12.0},
	"o3-mini": {InputPerMillion: 1.10, OutputPerMillion: 4.40},

	// Perplexity Sonar family
	"sonar":               {InputPerMillion: 1.0, OutputPerMillion: 1.0},
	"sonar-pro":           {InputPerMillion: 3.0, OutputPerMillion: 15.0},
	"sonar-reasoning":     {InputPerMillion: 1.0, OutputPerMillion: 5.0},
	"sonar-reasoning-pro": {InputPerMillion: 2.0, OutputPerMillion: 8.0},
}

// EstimateCost returns the estimated USD cost of usage on model. ok is false
// when the model has no known price, so a free call and an unpriced one
// differ. Dated snapshots such as "gpt-4o-2024-08-06" use their base price.
func EstimateCost(model string, usage Usage) (cost float64, ok bool) {
	p, ok := priceFor(model)
	if !ok {
		return 0, false
	}
	cost = float64(usage.PromptTokens)*p.InputPerMillion + float64(usage.CompletionTokens)*p.OutputPerMillion
	return cost / 1_000_000, true
}

// priceFor looks model up exactly, then by the longest priced base name
// followed by a dash.
func priceFor(model string) (modelPricing, bool) {
	if p, ok := pricing[model]; ok {
		return p, true
	}
	var best string
	for name := range pricing {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return modelPricing{}, false
	}
	return pricing[best], true
}
