package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/rowjay/docbackup/internal/config"
	"github.com/rowjay/docbackup/internal/util"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type Event struct {
	Type        string    `json:"type"` // backup, restore, prune, delete
	Message     string    `json:"message"`
	Status      string    `json:"status"`
	Backup      string    `json:"backup,omitempty"`
	Collections int       `json:"collections,omitempty"`
	Documents   int       `json:"documents,omitempty"`
	Size        int64     `json:"size,omitempty"`
	Pruned      int       `json:"pruned,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Duration    string    `json:"duration"`
	Error       string    `json:"error,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Multi fans an event out to every target and reports all delivery failures.
type Multi struct {
	Targets []Notifier
}

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, target := range m.Targets {
		if target == nil {
			continue
		}
		if err := target.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Webhook struct {
	Name         string
	URL          string
	Headers      map[string]string
	RetryCount   int
	RetryBackoff time.Duration
}

// Notify POSTs the event as JSON, retrying on transport errors and non-2xx
// responses.
func (w Webhook) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return util.Retry(ctx, w.RetryCount, w.RetryBackoff, func() error {
		return w.post(ctx, body)
	})
}

func (w Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned %s", w.Name, resp.Status)
	}
	return nil
}

func FromConfig(cfg config.NotificationsConfig) Multi {
	var targets []Notifier
	if cfg.WebhookURL != "" {
		targets = append(targets, Webhook{Name: "default", URL: cfg.WebhookURL, RetryCount: cfg.RetryCount, RetryBackoff: cfg.RetryBackoff})
	}
	for _, w := range cfg.Webhooks {
		targets = append(targets, Webhook{Name: w.Name, URL: w.URL, Headers: w.Headers, RetryCount: cfg.RetryCount, RetryBackoff: cfg.RetryBackoff})
	}
	return Multi{Targets: targets}
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
