package db

import (
	"time"

	"github.com/google/uuid"
)

// MeasureType is the kind of meter a reading was taken from
type MeasureType string

const (
	MeasureTypeWater MeasureType = "WATER"
	MeasureTypeGas   MeasureType = "GAS"
)

// File represents an image held by the vision service
type File struct {
	ID        uuid.UUID
	FileName  string
	FileURI   string
	MIMEType  string
	CreatedAt time.Time
}

// Measure represents a meter reading in the database.
// MeasureDatetime is the datetime exactly as the client sent it; MeasuredAt is
// its parsed instant, nil when the text is not a real calendar date.
type Measure struct {
	MeasureUUID     uuid.UUID
	CustomerCode    string
	MeasureDatetime string
	MeasuredAt      *time.Time
	MeasureType     MeasureType
	MeasureValue    int64
	ImageURL        string
	FileID          *uuid.UUID
	AnomalyReason   *string
	ConfirmedAt     *time.Time
	CreatedAt       time.Time
}

// MeasureStatus is the existence and confirmation state of a measure
type MeasureStatus struct {
	Exists    bool
	Confirmed bool
}

// MeasureSummary is the listing projection of a measure
type MeasureSummary struct {
	MeasureUUID     uuid.UUID
	MeasureDatetime string
	MeasureType     MeasureType
	HasConfirmed    bool
	ImageURL        string
}
