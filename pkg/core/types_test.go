package core

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"trend", CategoryTrend, false},
		{"anomaly", CategoryAnomaly, false},
		{"forecast", CategoryForecast, false},
		{"recommendation", CategoryRecommendation, false},
		{"weather", "", true},
		{"", "", true},
		{"Trend", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPriorityOrdering(t *testing.T) {
	if !(PriorityLow < PriorityMedium && PriorityMedium < PriorityHigh && PriorityHigh < PriorityCritical) {
		t.Error("priorities must be ordered low < medium < high < critical")
	}
}

func TestPriorityRoundTrip(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical} {
		got, err := ParsePriority(p.String())
		if err != nil {
			t.Errorf("ParsePriority(%q) unexpected error: %v", p.String(), err)
			continue
		}
		if got != p {
			t.Errorf("ParsePriority(%q) = %v, want %v", p.String(), got, p)
		}
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Error("ParsePriority should reject unknown names")
	}
}
