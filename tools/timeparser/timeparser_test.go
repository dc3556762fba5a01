package timeparser

import (
	"testing"
	"time"
)

func TestParseMeasureDatetime_UTC(t *testing.T) {
	result, err := ParseMeasureDatetime("2024-08-27T10:15:30Z")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2024, 8, 27, 10, 15, 30, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseMeasureDatetime_Offset(t *testing.T) {
	result, err := ParseMeasureDatetime("2024-08-27T07:15:30-03:00")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2024, 8, 27, 10, 15, 30, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseMeasureDatetime_FractionWithoutOffset(t *testing.T) {
	result, err := ParseMeasureDatetime("2024-08-27T10:15:30.250")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2024, 8, 27, 10, 15, 30, 250_000_000, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseMeasureDatetime_CalendarInvalid(t *testing.T) {
	if _, err := ParseMeasureDatetime("2024-13-01T10:00:00Z"); err == nil {
		t.Error("Expected error for month 13")
	}
}

func TestParseMeasureDatetime_Invalid(t *testing.T) {
	if _, err := ParseMeasureDatetime("27-08-2024"); err == nil {
		t.Error("Expected error for invalid timestamp")
	}
}

func TestFormatMeasureDatetime(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	got := FormatMeasureDatetime(time.Date(2024, 8, 27, 7, 15, 30, 0, loc))
	if got != "2024-08-27T10:15:30Z" {
		t.Errorf("Expected 2024-08-27T10:15:30Z, got %s", got)
	}
}
