package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"DROWSY_DETECTOR/go-backend/internal/models"
)

// MQTTEmitter publishes status transitions to a broker.
type MQTTEmitter struct {
	broker     string
	instanceID string
	topic      string
	log        *logrus.Logger

	client mqtt.Client

	mu        sync.RWMutex
	published uint64
	errors    uint64
	connected bool
}

func NewMQTTEmitter(broker, topic, instanceID string, log *logrus.Logger) *MQTTEmitter {
	return &MQTTEmitter{
		broker:     broker,
		instanceID: instanceID,
		topic:      StatusTopic(topic, instanceID),
		log:        log,
	}
}

// StatusTopic expands the {instance_id} placeholder.
func StatusTopic(template, instanceID string) string {
	return strings.ReplaceAll(template, "{instance_id}", instanceID)
}

func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.broker))
	opts.SetClientID(e.instanceID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		e.log.WithFields(logrus.Fields{"broker": e.broker, "client_id": e.instanceID}).Info("MQTT connection established")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		e.log.WithFields(logrus.Fields{"broker": e.broker, "error": err}).Warn("MQTT connection lost, will auto-reconnect")
	}

	e.client = mqtt.NewClient(opts)

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// Publish sends the event asynchronously. Events are dropped while disconnected.
func (e *MQTTEmitter) Publish(event models.StatusEvent) {
	e.mu.RLock()
	connected := e.connected
	e.mu.RUnlock()
	if e.client == nil || !connected {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		e.log.WithError(err).Error("Could not marshal status event")
		return
	}

	token := e.client.Publish(e.topic, 1, false, payload)
	go func() {
		token.WaitTimeout(5 * time.Second)
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := token.Error(); err != nil {
			e.errors++
			e.log.WithError(err).WithField("topic", e.topic).Warn("MQTT publish failed")
			return
		}
		e.published++
	}()
}

func (e *MQTTEmitter) Stats() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return map[string]interface{}{
		"broker":    e.broker,
		"topic":     e.topic,
		"connected": e.connected,
		"published": e.published,
		"errors":    e.errors,
	}
}

func (e *MQTTEmitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		e.log.Info("MQTT disconnected")
	}
}
