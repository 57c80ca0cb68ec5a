package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/coldchain-sensor/internal/logic"
	"github.com/sweeney/coldchain-sensor/internal/monitor"
)

// bufferCapacity is how many messages are held while the broker is unreachable.
const bufferCapacity = 256

// RealPublisher publishes to an actual MQTT broker. While disconnected it
// buffers messages in a fixed-size ring and replays them on reconnect.
type RealPublisher struct {
	client paho.Client
	log    logrus.FieldLogger

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealPublisher creates a publisher connected to the given broker.
// Connection failures after the initial connect are handled by buffering
// and paho's auto-reconnect.
func NewRealPublisher(broker string, log logrus.FieldLogger) (*RealPublisher, error) {
	p := &RealPublisher{
		log:    log,
		buffer: newRingBuffer(bufferCapacity),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("coldchain-sensor").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.WithError(err).Warn("mqtt connection lost, buffering")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect replays everything buffered while the connection was down.
func (p *RealPublisher) onConnect(client paho.Client) {
	p.mu.Lock()
	msgs := p.buffer.drainAll()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	p.log.WithField("count", len(msgs)).Info("mqtt reconnected, replaying buffered messages")
	for _, m := range msgs {
		token := client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			// Connection dropped again mid-replay; requeue and stop.
			p.mu.Lock()
			p.buffer.push(m)
			p.mu.Unlock()
			return
		}
	}
}

// publish sends one message, buffering it instead when the broker is away.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnected() {
		p.bufferMsg(topic, qos, retained, payload)
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.bufferMsg(topic, qos, retained, payload)
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.bufferMsg(topic, qos, retained, payload)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *RealPublisher) bufferMsg(topic string, qos byte, retained bool, payload []byte) {
	p.mu.Lock()
	kept := p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
	n := p.buffer.len()
	p.mu.Unlock()
	if !kept {
		p.log.WithField("capacity", bufferCapacity).Warn("mqtt buffer full, dropped oldest message")
	} else {
		p.log.WithField("buffered", n).Debug("mqtt offline, message buffered")
	}
}

// Publish sends a state-change event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(Topic, 0, false, payload)
}

// PublishRecord sends a finalized period record to the MQTT broker.
func (p *RealPublisher) PublishRecord(rec monitor.PeriodRecord) error {
	payload, err := FormatRecordPayload(rec)
	if err != nil {
		return fmt.Errorf("format record payload: %w", err)
	}

	// QoS 1 (at-least-once) - records are the audit trail
	return p.publish(TopicRecords, 1, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Buffered returns the number of messages waiting for reconnection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
