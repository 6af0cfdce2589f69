package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// WebhookDispatcher отправляет события POST-запросом во внешний шлюз push-уведомлений.
// Ответы 429 и 5xx повторяются с учётом Retry-After.
type WebhookDispatcher struct {
	url    string
	client *retryablehttp.Client
}

// NewWebhookDispatcher создаёт диспетчер для шлюза по указанному адресу.
func NewWebhookDispatcher(baseURL string, logger *zap.Logger) *WebhookDispatcher {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 5 * time.Second
	client.Logger = zapLeveledLogger{logger: logger}

	return &WebhookDispatcher{
		url:    base + "/api/notifications/spot-vacated",
		client: client,
	}
}

// SpotVacated отправляет событие в шлюз.
func (d *WebhookDispatcher) SpotVacated(ctx context.Context, event SpotVacatedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}

// Close закрывает простаивающие соединения клиента.
func (d *WebhookDispatcher) Close() error {
	d.client.HTTPClient.CloseIdleConnections()
	return nil
}

type zapLeveledLogger struct {
	logger *zap.Logger
}

func (l zapLeveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, keysAndValues...)
}

func (l zapLeveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l zapLeveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapLeveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Warnw(msg, keysAndValues...)
}
