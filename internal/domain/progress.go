package domain

import "math"

// Progress is the derived completion state of a patient against their
// assigned series.
type Progress struct {
	Percentage        int  `json:"percentage"`
	IsCompleted       bool `json:"isCompleted"`
	NextSessionNumber *int `json:"nextSessionNumber"` // nil once the series is completed
}

// ComputeProgress derives progress from the patient's session counter and the
// series' target count. Percentage uses round-half-up. A non-positive
// totalSessions violates the series contract and yields zero progress rather
// than a division error.
func ComputeProgress(currentSession, totalSessions int) Progress {
	if totalSessions <= 0 {
		next := 1
		return Progress{Percentage: 0, IsCompleted: false, NextSessionNumber: &next}
	}
	pct := int(math.Floor(float64(currentSession)/float64(totalSessions)*100 + 0.5))
	completed := currentSession >= totalSessions
	if completed {
		return Progress{Percentage: pct, IsCompleted: true}
	}
	next := currentSession + 1
	return Progress{Percentage: pct, IsCompleted: false, NextSessionNumber: &next}
}

// RoundAvg rounds a displayed average to one decimal place.
func RoundAvg(v float64) float64 {
	return math.Round(v*10) / 10
}
