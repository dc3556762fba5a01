package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	defaultModel       = "gemini-1.5-flash-latest"
	defaultAPIVersion  = "v1beta"
	defaultHTTPTimeout = 60 * time.Second
)

// GeminiConfig captures the runtime settings required to talk to Gemini.
type GeminiConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	TimeoutSeconds    int
	RequestsPerSecond float64
}

// GeminiClient uploads photos to the Gemini File API and asks a model to read
// them. It implements Extractor.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// GeminiOption customizes the client.
type GeminiOption func(*GeminiClient)

// WithLimiter overrides the request limiter.
func WithLimiter(limiter *rate.Limiter) GeminiOption {
	return func(c *GeminiClient) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// NewGeminiClient constructs a client using the supplied configuration. An
// empty BaseURL keeps the SDK's public endpoint.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *zap.Logger, opts ...GeminiOption) (*GeminiClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key required")
	}

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimSpace(cfg.BaseURL),
			APIVersion: defaultAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	c := &GeminiClient{
		client:  client,
		model:   model,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Extract uploads the image and asks the model to read it with the prompt.
func (c *GeminiClient) Extract(ctx context.Context, img Image, prompt string) (Result, error) {
	if len(img.Data) == 0 {
		return Result{}, errors.New("gemini extract: image required")
	}
	if strings.TrimSpace(prompt) == "" {
		return Result{}, errors.New("gemini extract: prompt required")
	}

	start := time.Now()
	file, err := c.UploadFile(ctx, img)
	if err != nil {
		return Result{}, err
	}
	c.logger.Debug("gemini file uploaded",
		zap.String("file_name", file.Name),
		zap.String("mime_type", file.MIMEType),
		zap.Int("size_bytes", len(img.Data)),
	)

	text, err := c.GenerateContent(ctx, prompt, file)
	if err != nil {
		return Result{File: file}, err
	}

	c.logger.Debug("gemini extraction finished",
		zap.String("file_name", file.Name),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return Result{File: file, Text: text}, nil
}

// UploadFile stores the image with the File API and returns its reference.
func (c *GeminiClient) UploadFile(ctx context.Context, img Image) (FileRef, error) {
	mimeType := mimetype.Detect(img.Data).String()
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return FileRef{}, fmt.Errorf("gemini upload: rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	uploaded, err := c.client.Files.Upload(ctx, bytes.NewReader(img.Data), &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: img.DisplayName,
	})
	if err != nil {
		return FileRef{}, callError(ctx, "gemini upload", err)
	}

	file := FileRef{
		Name:     uploaded.Name,
		URI:      uploaded.URI,
		MIMEType: uploaded.MIMEType,
	}
	if file.URI == "" {
		return FileRef{}, fmt.Errorf("gemini upload: response without file uri for %q", file.Name)
	}
	if file.MIMEType == "" {
		file.MIMEType = mimeType
	}
	return file, nil
}

// GenerateContent asks the model a question about an uploaded file and
// returns the text of the first candidate.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string, file FileRef) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("gemini generate: rate limit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromURI(file.URI, file.MIMEType),
		}, genai.RoleUser),
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](1),
		TopP:             genai.Ptr[float32](0.95),
		TopK:             genai.Ptr[float32](64),
		MaxOutputTokens:  8192,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", callError(ctx, "gemini generate", err)
	}

	var (
		sb           strings.Builder
		finishReason string
		blockReason  string
	)
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		candidate := resp.Candidates[0]
		finishReason = string(candidate.FinishReason)
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if part != nil {
					sb.WriteString(part.Text)
				}
			}
		}
	}
	if resp.PromptFeedback != nil {
		blockReason = string(resp.PromptFeedback.BlockReason)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w (finish_reason=%q, block_reason=%q)", ErrEmptyResponse, finishReason, blockReason)
	}
	return text, nil
}

// callError keeps a deadline or cancellation visible to errors.Is whatever
// the SDK wrapped it in.
func callError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%s: %w: %v", op, ctxErr, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
