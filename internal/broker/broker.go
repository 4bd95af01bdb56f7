// Package broker adapts the actuator/automations layer to an MQTT
// publish/subscribe bus: a topic-to-handler dispatch table, resubscribe
// on every (re)connect, and heartbeat/telemetry publishing. Grounded on
// the teacher's internal/api.Server method-per-route dispatch table,
// adapted from HTTP routes to MQTT topic subscriptions.
package broker

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Handler processes one message's raw payload. Handlers run on the
// paho client's own worker goroutine and must not block beyond brief
// work — long operations (the automations circulation delay, color
// cycles) dispatch their own goroutines.
type Handler func(payload []byte)

// Bus is the MQTT adapter. Topics are registered with Subscribe before
// Connect is called so the (re)connect handler can subscribe them all.
type Bus struct {
	client mqtt.Client

	mu       sync.Mutex
	handlers map[string]Handler
}

func New(brokerURL, clientID string) *Bus {
	b := &Bus{handlers: make(map[string]Handler)}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(mqtt.Client, error) {
			log.Warn().Msg("broker: connection lost")
		}).
		SetOnConnectHandler(func(client mqtt.Client) {
			log.Info().Msg("broker: connected, resubscribing")
			b.resubscribeAll(client)
		})

	b.client = mqtt.NewClient(opts)
	return b
}

// Subscribe registers a handler for topic. Must be called before Connect
// for the initial connection to pick it up; later calls take effect on
// the next reconnect cycle and are also subscribed immediately if
// already connected.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	b.handlers[topic] = handler
	b.mu.Unlock()

	if b.client.IsConnected() {
		b.subscribeOne(b.client, topic, handler)
	}
}

func (b *Bus) resubscribeAll(client mqtt.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, handler := range b.handlers {
		b.subscribeOne(client, topic, handler)
	}
}

func (b *Bus) subscribeOne(client mqtt.Client, topic string, handler Handler) {
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	})
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("broker: subscribe failed")
		}
	}()
}

// Connect attempts a connection without blocking the caller.
func (b *Bus) Connect() {
	token := b.client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Msg("broker: connect attempt failed")
		}
	}()
}

func (b *Bus) Connected() bool {
	return b.client.IsConnected()
}

func (b *Bus) Publish(topic string, payload []byte) error {
	token := b.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("broker: publish to %s timed out", topic)
	}
	return token.Error()
}

// Stop disconnects the client, allowing up to 250ms for in-flight work
// to drain.
func (b *Bus) Stop() {
	b.client.Disconnect(250)
}
