package recognition

import (
	"math"
	"strconv"
	"strings"
)

// FaceConfidence converts an embedding distance into a percentage string.
// Within the threshold the linear score is boosted towards 100%, so a match
// exactly at the threshold reads 50.0% while close matches read above 90%.
func FaceConfidence(distance, threshold float64) string {
	span := 1.0 - threshold
	linear := (1.0 - distance) / (span * 2.0)

	if distance > threshold {
		return formatPercent(round2(linear * 100))
	}

	value := (linear + (1.0-linear)*math.Pow((linear-0.5)*2, 0.2)) * 100
	return formatPercent(round2(value))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatPercent prints the shortest representation, always with a decimal
// point: 50 -> "50.0%", 96.76 -> "96.76%".
func formatPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + "%"
}
