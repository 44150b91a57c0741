package extract

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitIntoSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty input",
			text: "",
			want: []string(nil),
		},
		{
			name: "single sentence",
			text: "The retention period is five years.",
			want: []string{"The retention period is five years."},
		},
		{
			name: "multiple sentences",
			text: "Alice works at Acme. Acme is based in Berlin! Does Bob know?",
			want: []string{
				"Alice works at Acme.",
				"Acme is based in Berlin!",
				"Does Bob know?",
			},
		},
		{
			name: "paragraph breaks",
			text: "First paragraph sentence.\n\nSecond paragraph sentence.",
			want: []string{
				"First paragraph sentence.",
				"Second paragraph sentence.",
			},
		},
		{
			name: "multi-line sentence",
			text: "This sentence\nspans several\nlines before ending.",
			want: []string{"This sentence spans several lines before ending."},
		},
		{
			name: "numeric list markers are not sentence ends",
			text: "1. First rule applies here.",
			want: []string{"1. First rule applies here."},
		},
		{
			name: "markdown table kept whole",
			text: "System | Owner\n------ | -----\nCRM    | Sales\nERP    | Ops",
			want: []string{
				"System | Owner\n------ | -----\nCRM    | Sales\nERP    | Ops",
			},
		},
		{
			name: "table between prose",
			text: "Overview follows.\nSystem | Owner\n------ | -----\nCRM    | Sales\nThat concludes the list.",
			want: []string{
				"Overview follows.",
				"System | Owner\n------ | -----\nCRM    | Sales",
				"That concludes the list.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitIntoSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitIntoSentences() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestSplitIntoUnits(t *testing.T) {
	t.Run("empty text yields no units", func(t *testing.T) {
		units, err := splitIntoUnits("   \n  ", "cl100k_base", 100)
		if err != nil {
			t.Fatalf("splitIntoUnits() error = %v", err)
		}
		if len(units) != 0 {
			t.Errorf("splitIntoUnits() returned %d units, want 0", len(units))
		}
	})

	t.Run("short text fits in one unit", func(t *testing.T) {
		text := "Alice works at Acme. Acme is based in Berlin."
		units, err := splitIntoUnits(text, "cl100k_base", 100)
		if err != nil {
			t.Fatalf("splitIntoUnits() error = %v", err)
		}
		if len(units) != 1 {
			t.Fatalf("splitIntoUnits() returned %d units, want 1", len(units))
		}
		if units[0].Text != text {
			t.Errorf("unit text = %q, want %q", units[0].Text, text)
		}
		if units[0].Start != 0 || units[0].End != 2 {
			t.Errorf("unit bounds = [%d, %d), want [0, 2)", units[0].Start, units[0].End)
		}
		if units[0].ID == "" {
			t.Error("unit ID is empty")
		}
	})

	t.Run("long text splits on sentence boundaries", func(t *testing.T) {
		var sb strings.Builder
		for range 20 {
			sb.WriteString("The data protection officer reviews every processing activity each quarter. ")
		}
		units, err := splitIntoUnits(sb.String(), "cl100k_base", 40)
		if err != nil {
			t.Fatalf("splitIntoUnits() error = %v", err)
		}
		if len(units) < 2 {
			t.Fatalf("splitIntoUnits() returned %d units, want several", len(units))
		}
		covered := 0
		for i, u := range units {
			if u.End <= u.Start {
				t.Errorf("unit %d has empty bounds [%d, %d)", i, u.Start, u.End)
			}
			if u.Start != covered {
				t.Errorf("unit %d starts at %d, want %d", i, u.Start, covered)
			}
			covered = u.End
			if !strings.HasSuffix(u.Text, "quarter.") {
				t.Errorf("unit %d does not end on a sentence boundary: %q", i, u.Text)
			}
		}
		if covered != 20 {
			t.Errorf("units cover %d sentences, want 20", covered)
		}
	})

	t.Run("oversized sentence becomes its own unit", func(t *testing.T) {
		long := "This single sentence keeps going with many additional words well past the token budget set for a unit."
		text := "Short one. " + long + " Short two."
		units, err := splitIntoUnits(text, "cl100k_base", 10)
		if err != nil {
			t.Fatalf("splitIntoUnits() error = %v", err)
		}
		if len(units) != 3 {
			t.Fatalf("splitIntoUnits() returned %d units, want 3", len(units))
		}
		if units[1].Text != long {
			t.Errorf("middle unit = %q, want the oversized sentence", units[1].Text)
		}
	})
}
