package volume

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Default topics for a media endpoint reporting its output volume.
const (
	DefaultStateTopic   = "media/volume/state"
	DefaultCommandTopic = "media/volume/set"
)

var errNotConnected = errors.New("volume: mqtt client not connected")

// MQTTSource follows a volume level published on a state topic and forces it
// by publishing to a command topic. Payloads are plain decimal floats.
type MQTTSource struct {
	client       paho.Client
	stateTopic   string
	commandTopic string
	timeout      time.Duration
	log          *zap.SugaredLogger

	mu         sync.Mutex
	subscribed bool
	level      float64
	hasLevel   bool
	firstLevel chan struct{}
	fn         func(float64)
}

// NewMQTTSource creates a source on an existing client. The broker
// subscription is made lazily on first use.
func NewMQTTSource(client paho.Client, stateTopic, commandTopic string, timeout time.Duration, log *zap.SugaredLogger) *MQTTSource {
	if stateTopic == "" {
		stateTopic = DefaultStateTopic
	}
	if commandTopic == "" {
		commandTopic = DefaultCommandTopic
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MQTTSource{
		client:       client,
		stateTopic:   stateTopic,
		commandTopic: commandTopic,
		timeout:      timeout,
		log:          log,
		firstLevel:   make(chan struct{}),
	}
}

// Level returns the last reported level, waiting up to the timeout for the
// first (usually retained) state message.
func (s *MQTTSource) Level() (float64, error) {
	if err := s.ensureSubscribed(); err != nil {
		return 0, err
	}

	select {
	case <-s.firstLevel:
	case <-time.After(s.timeout):
		return 0, ErrNoLevel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level, nil
}

// SetLevel publishes the level to the command topic without waiting for delivery.
func (s *MQTTSource) SetLevel(level float64) error {
	if !s.client.IsConnected() {
		return errNotConnected
	}
	payload := strconv.FormatFloat(Clamp(level), 'f', -1, 64)
	token := s.client.Publish(s.commandTopic, 0, false, payload)
	// Fire and forget; report failures that are already known.
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish volume command: %w", err)
		}
	default:
	}
	return nil
}

// Subscribe registers fn for level changes.
func (s *MQTTSource) Subscribe(fn func(float64)) error {
	if err := s.ensureSubscribed(); err != nil {
		return err
	}
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
	return nil
}

// Unsubscribe removes the callback and drops the broker subscription.
func (s *MQTTSource) Unsubscribe() error {
	s.mu.Lock()
	s.fn = nil
	wasSubscribed := s.subscribed
	s.subscribed = false
	s.mu.Unlock()

	if !wasSubscribed {
		return nil
	}
	token := s.client.Unsubscribe(s.stateTopic)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("unsubscribe %s: timeout", s.stateTopic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", s.stateTopic, err)
	}
	return nil
}

// Resubscribe restores the broker subscription after a reconnect.
// Intended as an on-connect hook.
func (s *MQTTSource) Resubscribe(paho.Client) {
	s.mu.Lock()
	active := s.subscribed
	s.subscribed = false
	s.mu.Unlock()

	if !active {
		return
	}
	if err := s.ensureSubscribed(); err != nil {
		s.log.Warnw("volume resubscribe failed", "topic", s.stateTopic, "error", err)
	}
}

func (s *MQTTSource) ensureSubscribed() error {
	s.mu.Lock()
	if s.subscribed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if !s.client.IsConnected() {
		return errNotConnected
	}

	token := s.client.Subscribe(s.stateTopic, 0, s.handleMessage)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("subscribe %s: timeout", s.stateTopic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.stateTopic, err)
	}

	s.mu.Lock()
	s.subscribed = true
	s.mu.Unlock()
	return nil
}

func (s *MQTTSource) handleMessage(_ paho.Client, msg paho.Message) {
	level, err := ParseLevel(msg.Payload())
	if err != nil {
		s.log.Warnw("dropping volume payload", "topic", msg.Topic(), "error", err)
		return
	}

	s.mu.Lock()
	s.level = level
	if !s.hasLevel {
		s.hasLevel = true
		close(s.firstLevel)
	}
	fn := s.fn
	s.mu.Unlock()

	if fn != nil {
		fn(level)
	}
}

// ParseLevel decodes a decimal volume payload, clamped to the signal range.
func ParseLevel(payload []byte) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse volume %q: %w", payload, err)
	}
	if math.IsNaN(v) {
		return 0, fmt.Errorf("parse volume %q: not a number", payload)
	}
	return Clamp(v), nil
}
