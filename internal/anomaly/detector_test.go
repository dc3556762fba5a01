package anomaly

import (
	"strings"
	"testing"
)

const (
	testSpikeThreshold            = 3.0
	testMinDataPointsForDetection = 3
)

func TestDetectAnomaly_NegativeValue(t *testing.T) {
	detector := NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	isAnomaly, reason := detector.DetectAnomaly(-10, []int64{100, 90, 80})

	if !isAnomaly {
		t.Error("Expected anomaly for negative value")
	}

	if reason != "negative value" {
		t.Errorf("Expected reason 'negative value', got '%s'", reason)
	}
}

func TestDetectAnomaly_Decrease(t *testing.T) {
	detector := NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	isAnomaly, reason := detector.DetectAnomaly(95, []int64{100})

	if !isAnomaly {
		t.Error("Expected anomaly for decreasing reading")
	}

	if !strings.HasPrefix(reason, "reading decreased") {
		t.Errorf("Unexpected reason '%s'", reason)
	}
}

func TestDetectAnomaly_SuddenSpike(t *testing.T) {
	detector := NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	// deltas of 10, current delta 50
	previous := []int64{140, 130, 120, 110}

	isAnomaly, reason := detector.DetectAnomaly(190, previous)

	if !isAnomaly {
		t.Error("Expected anomaly for sudden spike")
	}

	if !strings.HasPrefix(reason, "sudden spike detected") {
		t.Errorf("Unexpected reason '%s'", reason)
	}
}

func TestDetectAnomaly_NormalValue(t *testing.T) {
	detector := NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	isAnomaly, reason := detector.DetectAnomaly(152, []int64{140, 130, 120, 110})

	if isAnomaly {
		t.Errorf("Expected no anomaly, but got: %s", reason)
	}
}

func TestDetectAnomaly_InsufficientData(t *testing.T) {
	detector := NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	// two deltas, fewer than MinDataPointsForDetection
	isAnomaly, _ := detector.DetectAnomaly(1000, []int64{120, 110, 100})

	if isAnomaly {
		t.Error("Should not detect spike with insufficient historical data")
	}
}

func TestDetectAnomaly_EmptyHistory(t *testing.T) {
	detector := NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	isAnomaly, _ := detector.DetectAnomaly(100, nil)

	if isAnomaly {
		t.Error("Expected no anomaly with empty history and positive value")
	}
}

func TestDetectAnomaly_ZeroConsumption(t *testing.T) {
	detector := NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	isAnomaly, _ := detector.DetectAnomaly(500, []int64{100, 100, 100, 100})

	if isAnomaly {
		t.Error("Should not detect spike when average consumption is 0")
	}
}
