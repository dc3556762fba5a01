package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/septivank/meter-reading-api/internal/apierr"
	"github.com/septivank/meter-reading-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubService struct {
	uploadReq  service.UploadRequest
	uploadResp *service.UploadResponse
	uploadErr  error

	confirmUUID  string
	confirmValue int64
	confirmCalls int
	confirmErr   error

	listCustomer string
	listType     string
	listResp     *service.ListResponse
	listErr      error
}

func (s *stubService) Upload(_ context.Context, req service.UploadRequest) (*service.UploadResponse, error) {
	s.uploadReq = req
	return s.uploadResp, s.uploadErr
}

func (s *stubService) Confirm(_ context.Context, measureUUID string, value int64) error {
	s.confirmCalls++
	s.confirmUUID = measureUUID
	s.confirmValue = value
	return s.confirmErr
}

func (s *stubService) List(_ context.Context, customerCode, measureType string) (*service.ListResponse, error) {
	s.listCustomer = customerCode
	s.listType = measureType
	return s.listResp, s.listErr
}

func newTestRouter(svc MeasureService, maxBody int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{
		MeasureHandler: NewMeasureHandler(svc, zap.NewNop()),
		Logger:         zap.NewNop(),
		MaxBodyBytes:   maxBody,
	})
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.ErrorDescription)
	return body
}

func TestUploadHandler_Success(t *testing.T) {
	svc := &stubService{uploadResp: &service.UploadResponse{
		ImageURL:     "https://files.example.test/abc",
		MeasureValue: 1234,
		MeasureUUID:  "7b0f8a4e-6f0d-4d55-9a3c-1c1b4a3f9b11",
	}}
	r := newTestRouter(svc, 1<<20)

	rec := do(t, r, http.MethodPost, "/upload",
		`{"image":"aGVsbG8=","customer_code":"C1","measure_datetime":"2024-05-01T10:00:00Z","measure_type":"WATER"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"image_url":"https://files.example.test/abc","measure_value":1234,"measure_uuid":"7b0f8a4e-6f0d-4d55-9a3c-1c1b4a3f9b11"}`, rec.Body.String())
	assert.Equal(t, "C1", svc.uploadReq.CustomerCode)
	assert.Equal(t, "aGVsbG8=", svc.uploadReq.Image)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUploadHandler_BadBody(t *testing.T) {
	r := newTestRouter(&stubService{}, 1<<20)

	for _, body := range []string{
		``,
		`not json`,
		`{"image":123,"customer_code":"C1","measure_datetime":"2024-05-01T10:00:00Z","measure_type":"WATER"}`,
	} {
		rec := do(t, r, http.MethodPost, "/upload", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, apierr.CodeInvalidData, decodeError(t, rec).ErrorCode)
	}
}

func TestUploadHandler_BodyTooLarge(t *testing.T) {
	r := newTestRouter(&stubService{}, 64)

	rec := do(t, r, http.MethodPost, "/upload", `{"image":"`+strings.Repeat("A", 256)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, apierr.CodeInvalidData, decodeError(t, rec).ErrorCode)
}

func TestUploadHandler_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"double report", apierr.New(http.StatusConflict, apierr.CodeDoubleReport, "Reading for this period has already been reported.", nil), http.StatusConflict, apierr.CodeDoubleReport},
		{"invalid", apierr.InvalidData("measure_type must be WATER or GAS."), http.StatusBadRequest, apierr.CodeInvalidData},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, apierr.CodeAIProcessingError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&stubService{uploadErr: tt.err}, 1<<20)
			rec := do(t, r, http.MethodPost, "/upload", `{"image":"aGVsbG8=","customer_code":"C1","measure_datetime":"2024-05-01T10:00:00Z","measure_type":"WATER"}`)
			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.ErrorCode)
			assert.NotContains(t, body.ErrorDescription, "boom")
		})
	}
}

func TestConfirmHandler_Success(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc, 1<<20)

	rec := do(t, r, http.MethodPatch, "/confirm", `{"measure_uuid":"u","confirmed_value":456}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, "u", svc.confirmUUID)
	assert.Equal(t, int64(456), svc.confirmValue)
}

func TestConfirmHandler_InvalidData(t *testing.T) {
	for _, body := range []string{
		`{"measure_uuid":123,"confirmed_value":456}`,
		`{"confirmed_value":456}`,
		`{"measure_uuid":"u","confirmed_value":"456"}`,
		`{"measure_uuid":"u"}`,
		`{"measure_uuid":"u","confirmed_value":4.5}`,
		`{"measure_uuid":"u","confirmed_value":null}`,
		`[1,2]`,
		`null`,
	} {
		svc := &stubService{}
		r := newTestRouter(svc, 1<<20)
		rec := do(t, r, http.MethodPatch, "/confirm", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, apierr.CodeInvalidData, decodeError(t, rec).ErrorCode)
		assert.Zero(t, svc.confirmCalls, body)
	}
}

func TestConfirmHandler_ServiceErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apierr.New(http.StatusNotFound, apierr.CodeMeasureNotFound, "Reading not found.", nil), http.StatusNotFound, apierr.CodeMeasureNotFound},
		{apierr.New(http.StatusConflict, apierr.CodeConfirmationDuplicate, "Reading has already been confirmed.", nil), http.StatusConflict, apierr.CodeConfirmationDuplicate},
		{errors.New("boom"), http.StatusInternalServerError, apierr.CodeProcessingError},
	}

	for _, tt := range tests {
		r := newTestRouter(&stubService{confirmErr: tt.err}, 1<<20)
		rec := do(t, r, http.MethodPatch, "/confirm", `{"measure_uuid":"u","confirmed_value":1}`)
		assert.Equal(t, tt.status, rec.Code)
		assert.Equal(t, tt.code, decodeError(t, rec).ErrorCode)
	}
}

func TestListHandler(t *testing.T) {
	svc := &stubService{listResp: &service.ListResponse{
		CustomerCode: "C1",
		Measures: []service.MeasureItem{{
			MeasureUUID:     "7b0f8a4e-6f0d-4d55-9a3c-1c1b4a3f9b11",
			MeasureDatetime: "2024-05-01T10:00:00Z",
			MeasureType:     "WATER",
			HasConfirmed:    false,
			ImageURL:        "https://files.example.test/abc",
		}},
	}}
	r := newTestRouter(svc, 1<<20)

	rec := do(t, r, http.MethodGet, "/C1/list?measure_type=water", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "C1", svc.listCustomer)
	assert.Equal(t, "water", svc.listType)
	assert.JSONEq(t, `{
		"customer_code": "C1",
		"measures": [{
			"measure_uuid": "7b0f8a4e-6f0d-4d55-9a3c-1c1b4a3f9b11",
			"measure_datetime": "2024-05-01T10:00:00Z",
			"measure_type": "WATER",
			"has_confirmed": false,
			"image_url": "https://files.example.test/abc"
		}]
	}`, rec.Body.String())
}

func TestListHandler_Errors(t *testing.T) {
	r := newTestRouter(&stubService{listErr: apierr.New(http.StatusBadRequest, apierr.CodeInvalidType, "Measure type not allowed.", nil)}, 1<<20)
	rec := do(t, r, http.MethodGet, "/C1/list?measure_type=INVALID", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierr.CodeInvalidType, decodeError(t, rec).ErrorCode)

	r = newTestRouter(&stubService{listErr: errors.New("boom")}, 1<<20)
	rec = do(t, r, http.MethodGet, "/C1/list", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apierr.CodeServerError, decodeError(t, rec).ErrorCode)
}

func TestIntegralNumber(t *testing.T) {
	v, ok := integralNumber(float64(456))
	assert.True(t, ok)
	assert.Equal(t, int64(456), v)

	v, ok = integralNumber(float64(-3))
	assert.True(t, ok)
	assert.Equal(t, int64(-3), v)

	for _, in := range []any{4.5, "456", nil, true, 1e19} {
		_, ok := integralNumber(in)
		assert.False(t, ok, in)
	}
}
