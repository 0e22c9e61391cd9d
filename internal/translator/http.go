package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TranslatePath is the endpoint the HTTP backend serves.
const TranslatePath = "/api/translate"

// maxErrorBody bounds how much of a failed response is kept for messages.
const maxErrorBody = 4 << 10

// HTTPService talks to a bilingua-compatible backend over JSON:
// POST {baseURL}/api/translate.
type HTTPService struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPService returns a client for the backend at baseURL. A zero
// timeout leaves request deadlines to the caller's context.
func NewHTTPService(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (s *HTTPService) Name() string {
	return "http"
}

// Translate sends one batch. Non-2xx answers yield *StatusError; a body
// that cannot be decoded or carries the wrong number of translations
// yields *ProtocolError.
func (s *HTTPService) Translate(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+TranslatePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	s.logger.Debug("backend responded",
		zap.Int("status", resp.StatusCode),
		zap.Int("segments", len(req.Segments)),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProtocolError{Reason: "malformed response body", Err: err}
	}
	if len(out.Translations) != len(req.Segments) {
		return nil, countMismatch(len(out.Translations), len(req.Segments))
	}
	return &out, nil
}

// IsAvailable probes the backend health endpoint.
func (s *HTTPService) IsAvailable(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
