package scoring

import "testing"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"plain dollars", "$25,000", 25000},
		{"range takes upper bound", "$5,000–$50,000", 50000},
		{"rolling has no amount", "Rolling", 0},
		{"empty string", "", 0},
		{"see listing", "See listing for details", 0},
		{"up to phrasing", "Awards up to $100,000 per recipient", 100000},
		{"mixed text", "Phase I: 50,000 USD, Phase II: 750,000 USD", 750000},
		{"no separators", "grants of 7500 dollars", 7500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAmount(tt.text); got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}
