package httpapi

import (
	"context"
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/septivank/meter-reading-api/internal/apierr"
	"github.com/septivank/meter-reading-api/internal/logging"
	"github.com/septivank/meter-reading-api/internal/service"
	"go.uber.org/zap"
)

// MeasureService is the workflow behind the measure endpoints
type MeasureService interface {
	Upload(ctx context.Context, req service.UploadRequest) (*service.UploadResponse, error)
	Confirm(ctx context.Context, measureUUID string, confirmedValue int64) error
	List(ctx context.Context, customerCode, measureType string) (*service.ListResponse, error)
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

// ConfirmResponse is the body of a successful confirmation
type ConfirmResponse struct {
	Success bool `json:"success"`
}

// MeasureHandler serves the measure endpoints
type MeasureHandler struct {
	svc    MeasureService
	logger *zap.Logger
}

// NewMeasureHandler creates a new measure handler
func NewMeasureHandler(svc MeasureService, logger *zap.Logger) *MeasureHandler {
	return &MeasureHandler{svc: svc, logger: logger}
}

// Upload handles POST /upload
func (h *MeasureHandler) Upload(c *gin.Context) {
	var req service.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, err, "Request body must be a JSON object with string fields image, customer_code, measure_datetime and measure_type.")
		return
	}

	resp, err := h.svc.Upload(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, apierr.CodeAIProcessingError)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Confirm handles PATCH /confirm
func (h *MeasureHandler) Confirm(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondBindError(c, err, "Request body must be a JSON object with measure_uuid and confirmed_value.")
		return
	}

	measureUUID, ok := body["measure_uuid"].(string)
	if !ok {
		writeError(c, apierr.InvalidData("measure_uuid must be a string."))
		return
	}
	confirmedValue, ok := integralNumber(body["confirmed_value"])
	if !ok {
		writeError(c, apierr.InvalidData("confirmed_value must be an integer number."))
		return
	}

	if err := h.svc.Confirm(c.Request.Context(), measureUUID, confirmedValue); err != nil {
		h.respondError(c, err, apierr.CodeProcessingError)
		return
	}
	c.JSON(http.StatusOK, ConfirmResponse{Success: true})
}

// List handles GET /:customer_code/list
func (h *MeasureHandler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context(), c.Param("customer_code"), c.Query("measure_type"))
	if err != nil {
		h.respondError(c, err, apierr.CodeServerError)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Health handles GET /health
func Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// NotFound answers unknown routes
func NotFound(c *gin.Context) {
	writeError(c, apierr.New(http.StatusNotFound, apierr.CodeNotFound, "Route not found.", nil))
}

// integralNumber accepts JSON numbers with no fractional part that fit in int64.
func integralNumber(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func (h *MeasureHandler) respondBindError(c *gin.Context, err error, description string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(c, apierr.New(http.StatusRequestEntityTooLarge, apierr.CodeInvalidData, "Request body is too large.", err))
		return
	}
	logging.FromContext(c.Request.Context(), h.logger).Debug("invalid request body", zap.Error(err))
	writeError(c, apierr.InvalidData(description))
}

// respondError writes err, which is expected to be an *apierr.Error; anything
// else becomes a 500 with fallbackCode.
func (h *MeasureHandler) respondError(c *gin.Context, err error, fallbackCode string) {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		logging.FromContext(c.Request.Context(), h.logger).Error("unclassified error", zap.Error(err))
		apiErr = apierr.Internal(fallbackCode, "Internal server error.", err)
	}
	writeError(c, apiErr)
}

func writeError(c *gin.Context, err *apierr.Error) {
	if err.Err != nil {
		_ = c.Error(err.Err)
	}
	c.AbortWithStatusJSON(err.Status, ErrorResponse{
		ErrorCode:        err.Code,
		ErrorDescription: err.Description,
	})
}
