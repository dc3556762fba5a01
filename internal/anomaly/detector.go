package anomaly

import (
	"fmt"
)

// Detector flags implausible meter readings with configurable thresholds.
// Meter readings are cumulative, so history is compared as consumption deltas.
type Detector struct {
	spikeThreshold            float64
	minDataPointsForDetection int
}

// NewDetector creates a new anomaly detector with the specified thresholds
func NewDetector(spikeThreshold float64, minDataPointsForDetection int) *Detector {
	return &Detector{
		spikeThreshold:            spikeThreshold,
		minDataPointsForDetection: minDataPointsForDetection,
	}
}

// DetectAnomaly checks a new reading against previous readings of the same
// meter, newest first.
func (d *Detector) DetectAnomaly(value int64, previous []int64) (bool, string) {
	if value < 0 {
		return true, "negative value"
	}

	if len(previous) == 0 {
		return false, ""
	}

	if value < previous[0] {
		return true, fmt.Sprintf("reading decreased: value %d is below previous reading %d", value, previous[0])
	}

	// Need enough consumption deltas for spike detection
	if len(previous)-1 < d.minDataPointsForDetection {
		return false, ""
	}

	sum := 0.0
	for i := 0; i < len(previous)-1; i++ {
		sum += float64(previous[i] - previous[i+1])
	}
	average := sum / float64(len(previous)-1)

	consumption := float64(value - previous[0])
	if average > 0 && consumption > d.spikeThreshold*average {
		return true, fmt.Sprintf("sudden spike detected: consumption %.0f exceeds %.1fx average consumption %.2f",
			consumption, d.spikeThreshold, average)
	}

	return false, ""
}
