package service

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/meter-reading-api/internal/anomaly"
	"github.com/septivank/meter-reading-api/internal/apierr"
	"github.com/septivank/meter-reading-api/internal/db"
	"github.com/septivank/meter-reading-api/internal/logging"
	"github.com/septivank/meter-reading-api/internal/metrics"
	"github.com/septivank/meter-reading-api/internal/mq"
	"github.com/septivank/meter-reading-api/internal/repository"
	"github.com/septivank/meter-reading-api/internal/validator"
	"github.com/septivank/meter-reading-api/internal/vision"
	"github.com/septivank/meter-reading-api/tools/timeparser"
	"go.uber.org/zap"
)

// Store is the persistence the measure workflows depend on
type Store interface {
	Exists(ctx context.Context, measureDatetime string, measureType db.MeasureType) (bool, error)
	Create(ctx context.Context, file *db.File, measure *db.Measure) error
	Status(ctx context.Context, measureUUID string) (db.MeasureStatus, error)
	Confirm(ctx context.Context, measureUUID string, value int64) (*db.Measure, error)
	List(ctx context.Context, customerCode string, measureType *db.MeasureType) ([]db.MeasureSummary, error)
	RecentValues(ctx context.Context, customerCode string, measureType db.MeasureType, before time.Time, limit int) ([]int64, error)
}

// EventPublisher publishes measure lifecycle events
type EventPublisher interface {
	PublishMeasureUploaded(ctx context.Context, event mq.MeasureEvent) error
	PublishMeasureConfirmed(ctx context.Context, event mq.MeasureEvent) error
}

// UploadRequest is the body of an upload
type UploadRequest struct {
	Image           string `json:"image"`
	CustomerCode    string `json:"customer_code"`
	MeasureDatetime string `json:"measure_datetime"`
	MeasureType     string `json:"measure_type"`
}

// UploadResponse is returned for an accepted upload
type UploadResponse struct {
	ImageURL     string `json:"image_url"`
	MeasureValue int64  `json:"measure_value"`
	MeasureUUID  string `json:"measure_uuid"`
}

// MeasureItem is one entry of a listing
type MeasureItem struct {
	MeasureUUID     string `json:"measure_uuid"`
	MeasureDatetime string `json:"measure_datetime"`
	MeasureType     string `json:"measure_type"`
	HasConfirmed    bool   `json:"has_confirmed"`
	ImageURL        string `json:"image_url"`
}

// ListResponse is a customer's measures
type ListResponse struct {
	CustomerCode string        `json:"customer_code"`
	Measures     []MeasureItem `json:"measures"`
}

// Options holds workflow settings
type Options struct {
	VisionTimeout time.Duration
	HistoryLimit  int
}

// MeasureService runs the upload, confirm and list workflows
type MeasureService struct {
	store     Store
	extractor vision.Extractor
	publisher EventPublisher
	detector  *anomaly.Detector
	opts      Options
	logger    *zap.Logger

	newID func() uuid.UUID
	now   func() time.Time
}

// NewMeasureService creates a new measure service
func NewMeasureService(
	store Store,
	extractor vision.Extractor,
	publisher EventPublisher,
	detector *anomaly.Detector,
	opts Options,
	logger *zap.Logger,
) *MeasureService {
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	return &MeasureService{
		store:     store,
		extractor: extractor,
		publisher: publisher,
		detector:  detector,
		opts:      opts,
		logger:    logger,
		newID:     uuid.New,
		now:       time.Now,
	}
}

// Upload reads the meter photo and stores the new measure.
func (s *MeasureService) Upload(ctx context.Context, req UploadRequest) (resp *UploadResponse, err error) {
	typeLabel := "unknown"
	defer func() {
		metrics.RecordUpload(typeLabel, outcome(err))
	}()

	if req.Image == "" || req.CustomerCode == "" || req.MeasureDatetime == "" || req.MeasureType == "" {
		return nil, apierr.InvalidData("Some required fields are missing: image, customer_code, measure_datetime and measure_type are required.")
	}

	if !validator.IsValidDatetimeFormat(req.MeasureDatetime) {
		return nil, apierr.InvalidData("measure_datetime is not a valid datetime, use the ISO-8601 format.")
	}

	if !validator.IsBase64(req.Image) {
		return nil, apierr.InvalidData("image is not valid base64.")
	}

	measureType, ok := validator.ParseMeasureType(req.MeasureType)
	if !ok {
		return nil, apierr.InvalidData("measure_type must be WATER or GAS.")
	}
	req.MeasureType = string(measureType)
	typeLabel = req.MeasureType

	// The string is stored as sent; the instant is kept only when it is a real calendar date.
	var measuredAt *time.Time
	if t, parseErr := timeparser.ParseMeasureDatetime(req.MeasureDatetime); parseErr == nil {
		measuredAt = &t
	}

	id := s.newID()
	logger := logging.WithMeasure(logging.FromContext(ctx, s.logger), id.String(), req.CustomerCode).With(
		zap.String("measure_type", req.MeasureType),
		zap.String("measure_datetime", req.MeasureDatetime),
	)

	exists, err := s.store.Exists(ctx, req.MeasureDatetime, measureType)
	if err != nil {
		logger.Error("failed to check for an existing measure", zap.Error(err))
		return nil, apierr.Internal(apierr.CodeServerError, "Could not check for existing readings.", err)
	}
	if exists {
		return nil, doubleReport()
	}

	value, file, err := s.extract(ctx, logger, id, req.Image, measureType)
	if err != nil {
		logger.Error("failed to extract measure from image", zap.Error(err))
		return nil, aiProcessingError(err)
	}

	measure := &db.Measure{
		MeasureUUID:     id,
		CustomerCode:    req.CustomerCode,
		MeasureDatetime: req.MeasureDatetime,
		MeasuredAt:      measuredAt,
		MeasureType:     measureType,
		MeasureValue:    value,
		ImageURL:        file.FileURI,
	}
	if measuredAt != nil {
		measure.AnomalyReason = s.checkPlausibility(ctx, logger, req.CustomerCode, measureType, *measuredAt, value)
	}

	if err := s.store.Create(ctx, file, measure); err != nil {
		if errors.Is(err, repository.ErrDuplicateMeasure) {
			logger.Info("concurrent upload already stored this measure")
			return nil, doubleReport()
		}
		logger.Error("failed to store measure", zap.Error(err))
		return nil, aiProcessingError(err)
	}

	logger.Info("measure uploaded", zap.Int64("measure_value", value))
	s.publish(ctx, logger, s.publisher.PublishMeasureUploaded, measure)

	return &UploadResponse{
		ImageURL:     measure.ImageURL,
		MeasureValue: measure.MeasureValue,
		MeasureUUID:  id.String(),
	}, nil
}

func (s *MeasureService) extract(ctx context.Context, logger *zap.Logger, id uuid.UUID, image string, measureType db.MeasureType) (int64, *db.File, error) {
	data, err := base64.StdEncoding.DecodeString(image)
	if err != nil {
		return 0, nil, err
	}

	if s.opts.VisionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.VisionTimeout)
		defer cancel()
	}

	displayName := "measure_" + id.String()
	start := time.Now()
	result, err := s.extractor.Extract(ctx, vision.Image{Data: data, DisplayName: displayName}, vision.PromptFor(measureType))
	metrics.ObserveVision(time.Since(start), err == nil)
	if err != nil {
		return 0, nil, err
	}

	value, err := vision.ParseMeasure(result.Text)
	if err != nil {
		return 0, nil, err
	}
	logger.Debug("measure extracted", zap.String("file_uri", result.File.URI), zap.Int64("measure_value", value))

	fileName := result.File.Name
	if fileName == "" {
		fileName = displayName
	}
	return value, &db.File{
		ID:       s.newID(),
		FileName: fileName,
		FileURI:  result.File.URI,
		MIMEType: result.File.MIMEType,
	}, nil
}

// checkPlausibility never fails the upload; a lookup error only skips the check.
func (s *MeasureService) checkPlausibility(ctx context.Context, logger *zap.Logger, customerCode string, measureType db.MeasureType, before time.Time, value int64) *string {
	if s.detector == nil {
		return nil
	}

	previous, err := s.store.RecentValues(ctx, customerCode, measureType, before, s.opts.HistoryLimit)
	if err != nil {
		logger.Warn("failed to get previous readings for anomaly detection", zap.Error(err))
		return nil
	}

	isAnomaly, reason := s.detector.DetectAnomaly(value, previous)
	if !isAnomaly {
		return nil
	}

	metrics.RecordAnomaly(string(measureType))
	logger.Warn("implausible reading", zap.Int64("measure_value", value), zap.String("reason", reason))
	return &reason
}

// Confirm records the human-checked value of a measure. It succeeds once.
func (s *MeasureService) Confirm(ctx context.Context, measureUUID string, confirmedValue int64) (err error) {
	defer func() {
		metrics.RecordConfirmation(outcome(err))
	}()

	logger := logging.FromContext(ctx, s.logger).With(zap.String("measure_uuid", measureUUID))

	status, err := s.store.Status(ctx, measureUUID)
	if err != nil {
		logger.Error("failed to get measure status", zap.Error(err))
		return processingError(err)
	}
	if !status.Exists {
		return measureNotFound()
	}
	if status.Confirmed {
		return confirmationDuplicate()
	}

	measure, err := s.store.Confirm(ctx, measureUUID, confirmedValue)
	switch {
	case errors.Is(err, repository.ErrMeasureNotFound):
		return measureNotFound()
	case errors.Is(err, repository.ErrAlreadyConfirmed):
		logger.Info("measure confirmed concurrently")
		return confirmationDuplicate()
	case err != nil:
		logger.Error("failed to confirm measure", zap.Error(err))
		return processingError(err)
	}

	logger.Info("measure confirmed", zap.Int64("confirmed_value", confirmedValue))
	s.publish(ctx, logger, s.publisher.PublishMeasureConfirmed, measure)
	return nil
}

// List returns a customer's measures, optionally filtered by type.
func (s *MeasureService) List(ctx context.Context, customerCode, measureTypeFilter string) (*ListResponse, error) {
	var filter *db.MeasureType
	if measureTypeFilter != "" {
		t, ok := validator.ParseMeasureType(measureTypeFilter)
		if !ok {
			return nil, apierr.New(http.StatusBadRequest, apierr.CodeInvalidType, "Measure type not allowed.", nil)
		}
		filter = &t
	}

	measures, err := s.store.List(ctx, customerCode, filter)
	if err != nil {
		logging.FromContext(ctx, s.logger).Error("failed to list measures", zap.String("customer_code", customerCode), zap.Error(err))
		return nil, apierr.Internal(apierr.CodeServerError, "Server error while fetching readings.", err)
	}
	if len(measures) == 0 {
		return nil, apierr.New(http.StatusNotFound, apierr.CodeMeasuresNotFound, "No readings found.", nil)
	}

	items := make([]MeasureItem, 0, len(measures))
	for _, m := range measures {
		items = append(items, MeasureItem{
			MeasureUUID:     m.MeasureUUID.String(),
			MeasureDatetime: m.MeasureDatetime,
			MeasureType:     string(m.MeasureType),
			HasConfirmed:    m.HasConfirmed,
			ImageURL:        m.ImageURL,
		})
	}

	return &ListResponse{CustomerCode: customerCode, Measures: items}, nil
}

// publish logs but does not fail on errors; the measure is already stored.
func (s *MeasureService) publish(ctx context.Context, logger *zap.Logger, fn func(context.Context, mq.MeasureEvent) error, m *db.Measure) {
	event := mq.MeasureEvent{
		MeasureUUID:     m.MeasureUUID.String(),
		CustomerCode:    m.CustomerCode,
		MeasureType:     string(m.MeasureType),
		MeasureDatetime: m.MeasureDatetime,
		MeasureValue:    m.MeasureValue,
		ImageURL:        m.ImageURL,
		HasConfirmed:    m.ConfirmedAt != nil,
		AnomalyReason:   m.AnomalyReason,
		OccurredAt:      timeparser.FormatMeasureDatetime(s.now()),
	}
	if err := fn(ctx, event); err != nil {
		logger.Error("failed to publish measure event", zap.Error(err))
	}
}

func outcome(err error) string {
	if err == nil {
		return "OK"
	}
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return apierr.CodeServerError
}

func doubleReport() *apierr.Error {
	return apierr.New(http.StatusConflict, apierr.CodeDoubleReport, "Reading for this period has already been reported.", nil)
}

func aiProcessingError(err error) *apierr.Error {
	return apierr.Internal(apierr.CodeAIProcessingError, "An error occurred while processing the image with the vision service.", err)
}

func measureNotFound() *apierr.Error {
	return apierr.New(http.StatusNotFound, apierr.CodeMeasureNotFound, "Reading not found.", nil)
}

func confirmationDuplicate() *apierr.Error {
	return apierr.New(http.StatusConflict, apierr.CodeConfirmationDuplicate, "Reading has already been confirmed.", nil)
}

func processingError(err error) *apierr.Error {
	return apierr.Internal(apierr.CodeProcessingError, "An error occurred while processing your request.", err)
}
