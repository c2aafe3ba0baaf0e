package recognition

import (
	"fmt"
	"testing"
)

func TestFaceConfidence(t *testing.T) {
	tests := []struct {
		name      string
		distance  float64
		threshold float64
		expected  string
	}{
		{"identical", 0.0, 0.4, "98.7%"},
		{"close match", 0.1, 0.4, "96.76%"},
		{"at threshold", 0.4, 0.4, "50.0%"},
		{"beyond threshold is linear", 0.5, 0.4, "41.67%"},
		{"far beyond threshold", 1.0, 0.4, "0.0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FaceConfidence(tt.distance, tt.threshold); got != tt.expected {
				t.Errorf("FaceConfidence(%v, %v) = %q, want %q", tt.distance, tt.threshold, got, tt.expected)
			}
		})
	}
}

func TestFaceConfidence_Monotonic(t *testing.T) {
	prev := 101.0
	for d := 0.0; d <= 0.4; d += 0.05 {
		got := FaceConfidence(d, 0.4)
		var v float64
		if _, err := fmt.Sscanf(got, "%f%%", &v); err != nil {
			t.Fatalf("unparseable confidence %q: %v", got, err)
		}
		if v > prev {
			t.Errorf("confidence increased with distance at d=%.2f: %v > %v", d, v, prev)
		}
		prev = v
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		in       float64
		expected string
	}{
		{50, "50.0%"},
		{100, "100.0%"},
		{96.76, "96.76%"},
		{98.7, "98.7%"},
	}
	for _, tt := range tests {
		if got := formatPercent(tt.in); got != tt.expected {
			t.Errorf("formatPercent(%v) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}
