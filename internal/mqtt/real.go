package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/volume-counter/internal/logic"
)

// DefaultBufferSize is how many messages are kept while disconnected.
const DefaultBufferSize = 100

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var errPublishTimeout = errors.New("publish timeout")

// NewClient creates a client for broker without connecting. onConnect hooks
// run on every (re)connection.
func NewClient(broker, clientID string, log *zap.SugaredLogger, onConnect ...paho.OnConnectHandler) paho.Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(func(c paho.Client) {
			log.Infow("mqtt connected", "broker", broker)
			for _, h := range onConnect {
				h(c)
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("mqtt connection lost", "error", err)
		})

	return paho.NewClient(opts)
}

// Connect starts connecting and waits a bounded time for the first attempt.
// Connection is retried in the background, so a broker that is down at
// startup is not fatal.
func Connect(client paho.Client, log *zap.SugaredLogger) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warnw("mqtt not connected yet, retrying in background")
	} else if err := token.Error(); err != nil {
		log.Warnw("mqtt connect failed, retrying in background", "error", err)
	}
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are buffered and replayed by OnConnect.
type RealPublisher struct {
	client paho.Client
	log    *zap.SugaredLogger

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool // set after the first OnConnect
	now       func() time.Time
}

// NewRealPublisher creates a publisher on an existing client.
func NewRealPublisher(client paho.Client, bufferSize int, log *zap.SugaredLogger) *RealPublisher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RealPublisher{
		client: client,
		log:    log,
		buf:    newRingBuffer(bufferSize),
		now:    time.Now,
	}
}

// Publish sends a counter change, QoS 0, not retained.
func (p *RealPublisher) Publish(change logic.Change) error {
	payload, err := FormatPayload(change)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.send(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event, QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the underlying client is connected.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// OnConnect replays buffered messages. After the first connection it also
// announces RECONNECTED. Register it as an on-connect hook.
func (p *RealPublisher) OnConnect(paho.Client) {
	p.mu.Lock()
	pending := p.buf.drainAll()
	reconnect := p.connected
	p.connected = true
	p.mu.Unlock()

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		pending = append(pending, bufferedMsg{topic: TopicSystem, payload: payload, qos: 1})
	}

	for i, msg := range pending {
		if err := p.publish(msg); err != nil {
			p.log.Warnw("replay failed, re-buffering", "topic", msg.topic, "error", err)
			p.mu.Lock()
			for _, rest := range pending[i:] {
				p.buf.push(rest)
			}
			p.mu.Unlock()
			return
		}
	}
	if len(pending) > 0 {
		p.log.Infow("replayed buffered messages", "count", len(pending))
	}
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		first := p.buf.push(msg)
		p.mu.Unlock()
		if first {
			p.log.Warnw("mqtt buffer full, dropping oldest")
		}
		return nil
	}
	return p.publish(msg)
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}
