// Package notifications sends operator alerts to ntfy.sh, adapted from
// the teacher's internal/notifications: same client and payload shape,
// constructed with an explicit topic instead of a global env singleton
// so the supervisor can substitute a fake in tests.
package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mjpetersen/pipool-controller/internal/model"
)

type Notifier struct {
	client *http.Client
	topic  string
}

// New returns a Notifier. A blank topic disables sending: Send then
// returns an error instead of reaching the network.
func New(topic string) *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: 10 * time.Second},
		topic:  topic,
	}
}

func (n *Notifier) Send(title, message string) error {
	if n.topic == "" {
		return fmt.Errorf("notifications: topic not configured")
	}

	url := fmt.Sprintf("https://ntfy.sh/%s", n.topic)

	payload := map[string]any{
		"topic":   n.topic,
		"title":   title,
		"message": message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notifications: marshal: %w", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("notifications: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notifications: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notifications: ntfy returned status %d", resp.StatusCode)
	}

	log.Debug().Str("title", title).Int("status", resp.StatusCode).Msg("notifications: sent")
	return nil
}

// Watch subscribes to an event sink and forwards a fixed set of
// safety-critical event names as notifications, so an operator away
// from the telemetry topic still hears about emergency stops.
type Watch struct {
	notifier *Notifier
	names    map[string]string // event name -> notification title
}

func NewWatch(notifier *Notifier) *Watch {
	return &Watch{
		notifier: notifier,
		names: map[string]string{
			"watchdog_heater_emergency_stop":  "Heater emergency stop",
			"watchdog_network_loss":           "Network lost",
			"watchdog_mqtt_extended_outage":   "Broker outage extended",
			"heater_max_runtime_exceeded":     "Heater max runtime exceeded",
			"system_shutdown":                "Controller shutting down",
		},
	}
}

// Event implements actuator.EventSink and watchdog.EventSink so it can
// be composed alongside the log store via a fan-out sink.
func (w *Watch) Event(e model.Event) {
	title, ok := w.names[e.Name]
	if !ok {
		return
	}

	message := e.Name
	if e.From != "" || e.To != "" {
		message = fmt.Sprintf("%s: %s -> %s", e.Name, e.From, e.To)
	}

	if err := w.notifier.Send(title, message); err != nil {
		log.Warn().Err(err).Str("event", e.Name).Msg("notifications: failed to forward event")
	}
}
