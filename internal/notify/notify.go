// Package notify fans lifecycle events out to external sinks.
//
// Delivery is best-effort: a failing sink is logged and never affects other
// sinks or the update pipeline.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/koalasec/photon-sync/internal/logger"
)

// Event types emitted by the update scheduler.
const (
	EventUpdateStarted      = "update_started"
	EventUpdateSkipped      = "update_skipped"
	EventDownloadFailed     = "download_failed"
	EventVerificationFailed = "verification_failed"
	EventUpdateSucceeded    = "update_succeeded"
	EventUpdateFailed       = "update_failed"
)

// Event is one lifecycle notification.
type Event struct {
	Type   string                 `json:"type"`
	Time   time.Time              `json:"time"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, fields map[string]interface{}) Event {
	return Event{Type: eventType, Time: time.Now().UTC(), Fields: fields}
}

// Sink delivers a single event to one destination.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// WebhookSink POSTs events as JSON to a URL.
type WebhookSink struct {
	URL    string
	client *http.Client
}

// NewWebhookSink creates a webhook sink with a short delivery timeout.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		URL:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSink) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook %s returned status %d", s.URL, resp.StatusCode)
	}
	return nil
}

// Notifier fans events out to zero or more sinks.
type Notifier struct {
	sinks []Sink
	log   logger.Logger
}

// New creates a Notifier with webhook sinks for the given URLs.
func New(log logger.Logger, urls []string) *Notifier {
	n := &Notifier{log: log}
	for _, u := range urls {
		n.sinks = append(n.sinks, NewWebhookSink(u))
	}
	return n
}

// AddSink registers an additional sink.
func (n *Notifier) AddSink(s Sink) {
	n.sinks = append(n.sinks, s)
}

// Notify delivers ev to every sink concurrently. Failures are logged and
// swallowed; the pipeline must never stall on notification delivery.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	if len(n.sinks) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(8)
	for _, sink := range n.sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.Notify(ctx, ev); err != nil {
				n.log.Warnf("notification delivery failed for %s: %v", ev.Type, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
