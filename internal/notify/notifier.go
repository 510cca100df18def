// Package notify delivers operator alerts (dead venue feeds, detected
// opportunities, archive cycles) to chat channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Alert is one operator notification.
type Alert struct {
	Event Event
	Title string
	Body  string
}

// Sender delivers an alert over one channel.
type Sender interface {
	Send(ctx context.Context, a Alert) error
	// Name identifies the channel in logs and error messages.
	Name() string
}

// Notifier fans alerts out to every configured sender, filtered by event
// type. An empty filter admits every event.
type Notifier struct {
	senders []Sender
	allowed map[Event]struct{}
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders. Only alerts whose
// Event appears in events are forwarded; an empty events slice disables the
// filter.
func NewNotifier(senders []Sender, events []Event, logger *slog.Logger) *Notifier {
	allowed := make(map[Event]struct{}, len(events))
	for _, e := range events {
		allowed[e] = struct{}{}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers a to every sender. One sender failing does not block the
// rest; the failures come back joined.
func (n *Notifier) Notify(ctx context.Context, a Alert) error {
	if len(n.allowed) > 0 {
		if _, ok := n.allowed[a.Event]; !ok {
			n.logger.DebugContext(ctx, "alert filtered",
				slog.String("event", string(a.Event)),
			)
			return nil
		}
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, a); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", string(a.Event)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// postJSON submits payload to url and fails on any non-2xx response. Both
// chat senders are plain JSON-over-HTTP APIs.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
