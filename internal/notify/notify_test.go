package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/rowjay/docbackup/internal/config"
)

func TestWebhookDeliversEvent(t *testing.T) {
	var got Event
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := Webhook{Name: "ops", URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer x"}}
	event := Event{Type: "backup", Status: StatusSuccess, Backup: "nightly", Documents: 12, StartedAt: time.Now()}
	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.Backup != "nightly" || got.Documents != 12 || got.Status != StatusSuccess {
		t.Fatalf("unexpected event: %+v", got)
	}
	if auth != "Bearer x" {
		t.Fatalf("custom header not sent: %q", auth)
	}
}

func TestWebhookRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hook := Webhook{Name: "flaky", URL: srv.URL, RetryCount: 3, RetryBackoff: time.Millisecond}
	if err := hook.Notify(context.Background(), Event{Type: "prune"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	hook = Webhook{Name: "down", URL: failing.URL, RetryCount: 2, RetryBackoff: time.Millisecond}
	if err := hook.Notify(context.Background(), Event{Type: "prune"}); err == nil {
		t.Fatalf("expected error from failing webhook")
	}
}

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Notify(ctx context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func TestMultiNotifiesAllTargets(t *testing.T) {
	ok := &recorder{}
	broken := &recorder{err: io.ErrUnexpectedEOF}
	m := Multi{Targets: []Notifier{broken, nil, ok}}
	err := m.Notify(context.Background(), Event{Type: "restore"})
	if err == nil {
		t.Fatalf("expected delivery error")
	}
	if len(ok.events) != 1 || len(broken.events) != 1 {
		t.Fatalf("every target should be called")
	}
}

func TestFromConfig(t *testing.T) {
	m := FromConfig(config.NotificationsConfig{
		WebhookURL: "http://example.invalid/hook",
		Webhooks:   []config.WebhookConfig{{Name: "second", URL: "http://example.invalid/2"}},
		RetryCount: 2,
	})
	if len(m.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(m.Targets))
	}
	first := m.Targets[0].(Webhook)
	if first.Name != "default" || first.RetryCount != 2 {
		t.Fatalf("unexpected first target: %+v", first)
	}
	if len(FromConfig(config.NotificationsConfig{}).Targets) != 0 {
		t.Fatalf("expected no targets")
	}
}
