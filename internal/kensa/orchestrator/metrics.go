package orchestrator

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// metricsSchema gates the extraction response shape: a flat JSON object.
// Arrays, scalars, and prose all fail here and leave the metrics map
// untouched for the call. Per-value numeric checks happen in foldMetrics so
// one bad value cannot poison its siblings.
var metricsSchema = jsonschema.MustCompileString("metrics.schema.json", `{
	"type": "object"
}`)

// parseMetrics interprets the metric-extraction LLM response as a map of
// numeric metrics. The boolean result distinguishes "parsed an object"
// from "response unusable"; it is internal only — the external contract
// stays "metrics unchanged on failure, never an error".
func parseMetrics(response string) (map[string]float64, bool) {
	text := stripCodeFence(strings.TrimSpace(response))
	if text == "" {
		return nil, false
	}

	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}
	if err := metricsSchema.Validate(raw); err != nil {
		return nil, false
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}

	parsed := make(map[string]float64, len(obj))
	for k, v := range obj {
		if f, ok := asFloat(v); ok {
			parsed[k] = f
		}
		// Non-numeric values are dropped per-key, silently.
	}
	return parsed, true
}

// foldMetrics merges newly parsed metrics into a copy of current. Later
// values overwrite earlier ones under the same key.
func foldMetrics(current map[string]float64, response string) map[string]float64 {
	merged := cloneMetrics(current)
	parsed, ok := parseMetrics(response)
	if !ok {
		return merged
	}
	for k, v := range parsed {
		merged[k] = v
	}
	return merged
}

// asFloat coerces a decoded JSON value to float64. Numeric strings are
// accepted, matching the lenient extraction contract.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// stripCodeFence removes a surrounding markdown code fence, with or without
// a language tag. Models in JSON mode still fence occasionally.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the opening-fence line ("json", "sql", or empty).
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
