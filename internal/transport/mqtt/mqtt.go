// Package mqtt publishes fader snapshots to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	applog "smoothfade/internal/log"
	"smoothfade/internal/transport"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures a Transport.
type Options struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Topic    string
	Retain   bool // Retain the latest snapshot for late subscribers.
}

// Transport publishes each message as JSON to one topic. QoS 0: a newer
// snapshot always supersedes a lost one.
type Transport struct {
	client paho.Client
	topic  string
	retain bool
}

// New connects to the broker and returns a ready Transport.
func New(opts Options) (*Transport, error) {
	if opts.Broker == "" || opts.Topic == "" {
		return nil, errors.New("mqtt: broker and topic are required")
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt: connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to broker: %w", err)
	}

	applog.Infof("MQTT: Connected to %s, publishing on %s", opts.Broker, opts.Topic)
	return newTransport(client, opts), nil
}

func newTransport(client paho.Client, opts Options) *Transport {
	return &Transport{client: client, topic: opts.Topic, retain: opts.Retain}
}

// Send publishes data as JSON.
func (t *Transport) Send(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("mqtt: format payload: %w", err)
	}

	token := t.client.Publish(t.topic, 0, t.retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (t *Transport) Close() error {
	t.client.Disconnect(1000) // 1 second timeout
	return nil
}

var _ transport.Transport = (*Transport)(nil)
