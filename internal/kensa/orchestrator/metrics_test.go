package orchestrator

import (
	"math"
	"strings"
	"testing"
)

func TestParseMetrics(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     map[string]float64
		ok       bool
	}{
		{
			name:     "plain object",
			response: `{"pass_rate": 0.82, "total_runs": 140}`,
			want:     map[string]float64{"pass_rate": 0.82, "total_runs": 140},
			ok:       true,
		},
		{
			name:     "fenced with language tag",
			response: "```json\n{\"pass_rate\": 0.82}\n```",
			want:     map[string]float64{"pass_rate": 0.82},
			ok:       true,
		},
		{
			name:     "fenced without tag",
			response: "```\n{\"pass_rate\": 0.82}\n```",
			want:     map[string]float64{"pass_rate": 0.82},
			ok:       true,
		},
		{
			name:     "numeric strings coerced",
			response: `{"pass_rate": "0.82", "flaky": " 3 "}`,
			want:     map[string]float64{"pass_rate": 0.82, "flaky": 3},
			ok:       true,
		},
		{
			name:     "non-numeric values dropped per key",
			response: `{"pass_rate": 0.82, "note": "improving", "tags": ["a"]}`,
			want:     map[string]float64{"pass_rate": 0.82},
			ok:       true,
		},
		{
			name:     "array rejected",
			response: `[1, 2, 3]`,
			ok:       false,
		},
		{
			name:     "scalar rejected",
			response: `42`,
			ok:       false,
		},
		{
			name:     "prose rejected",
			response: "no metrics present in these results",
			ok:       false,
		},
		{
			name:     "empty response",
			response: "   ",
			ok:       false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseMetrics(tt.response)
			if ok != tt.ok {
				t.Fatalf("parseMetrics() ok = %v, want %v", ok, tt.ok)
			}
			if !tt.ok {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseMetrics() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if math.Abs(got[k]-v) > 1e-9 {
					t.Errorf("parseMetrics()[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestFoldMetrics(t *testing.T) {
	current := map[string]float64{"pass_rate": 0.75, "total_runs": 100}

	merged := foldMetrics(current, `{"pass_rate": 0.82, "flaky": 3}`)

	if merged["pass_rate"] != 0.82 {
		t.Errorf("later value should overwrite: pass_rate = %v", merged["pass_rate"])
	}
	if merged["total_runs"] != 100 {
		t.Errorf("unrelated key lost: total_runs = %v", merged["total_runs"])
	}
	if merged["flaky"] != 3 {
		t.Errorf("new key missing: flaky = %v", merged["flaky"])
	}
	if current["pass_rate"] != 0.75 {
		t.Errorf("input map mutated: pass_rate = %v", current["pass_rate"])
	}
}

func TestFoldMetrics_UnusableResponseKeepsCurrent(t *testing.T) {
	current := map[string]float64{"pass_rate": 0.75}

	merged := foldMetrics(current, "not json at all")
	if len(merged) != 1 || merged["pass_rate"] != 0.75 {
		t.Errorf("metrics changed on unusable response: %v", merged)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", "SELECT 1", "SELECT 1"},
		{"sql fence", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"bare fence", "```\nSELECT 1\n```", "SELECT 1"},
		{"fence with trailing newline", "```json\n{\"a\": 1}\n```\n", "{\"a\": 1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(strings.TrimSpace(tt.in)); got != tt.want {
				t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
