package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/snoutos/message-router/internal/config"
)

// CalendarService pushes assignment changes to the external calendar
// webhook. Every push is best-effort: callers log failures and move on,
// the primary transaction has already committed.
type CalendarService struct {
	httpClient *http.Client
	webhookURL string
	logger     *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(cfg config.CalendarConfig, logger *zap.Logger) *CalendarService {
	timeout := time.Duration(cfg.SyncTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CalendarService{
		httpClient: &http.Client{Timeout: timeout},
		webhookURL: cfg.WebhookURL,
		logger:     logger,
	}
}

// Enabled reports whether a sync endpoint is configured.
func (s *CalendarService) Enabled() bool {
	return strings.TrimSpace(s.webhookURL) != ""
}

// Push POSTs one sync payload. A non-2xx answer is an error so the
// caller can log and audit it; it is never fatal.
func (s *CalendarService) Push(ctx context.Context, kind string, payload any) error {
	if !s.Enabled() {
		return nil
	}
	body, err := json.Marshal(map[string]any{
		"kind":    kind,
		"payload": payload,
	})
	if err != nil {
		return fmt.Errorf("calendar payload encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendar sync: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("calendar sync rejected with status %d", resp.StatusCode)
	}
	s.logger.Debug("calendar sync pushed", zap.String("kind", kind))
	return nil
}
