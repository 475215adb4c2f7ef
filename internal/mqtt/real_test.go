package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/volume-counter/internal/logic"
)

type doneToken struct{ err error }

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *doneToken) Error() error { return t.err }

// fakeClient implements the parts of paho.Client used by RealPublisher.
type fakeClient struct {
	paho.Client

	mu           sync.Mutex
	connected    bool
	sent         []bufferedMsg
	publishErr   error
	connectErr   error
	connectCalls int
	disconnected bool
}

func (c *fakeClient) Connect() paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectCalls++
	return &doneToken{err: c.connectErr}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return &doneToken{err: c.publishErr}
	}
	c.sent = append(c.sent, bufferedMsg{topic: topic, payload: payload.([]byte), qos: qos, retained: retained})
	return &doneToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

func TestRealPublisherPublishesWhenConnected(t *testing.T) {
	c := &fakeClient{connected: true}
	p := NewRealPublisher(c, 10, nil)

	require.NoError(t, p.Publish(logic.Change{Timestamp: ts, Direction: logic.DirectionIncrease, Origin: logic.OriginVolume, Value: 1}))
	require.NoError(t, p.PublishSystem(SystemEvent{Timestamp: ts, Event: "STARTUP", Retained: true}))

	require.Len(t, c.sent, 2)
	assert.Equal(t, Topic, c.sent[0].topic)
	assert.Equal(t, byte(0), c.sent[0].qos)
	assert.False(t, c.sent[0].retained)
	assert.Equal(t, TopicSystem, c.sent[1].topic)
	assert.Equal(t, byte(1), c.sent[1].qos)
	assert.True(t, c.sent[1].retained)
	assert.True(t, p.IsConnected())
}

func TestRealPublisherBuffersWhileDisconnected(t *testing.T) {
	c := &fakeClient{}
	p := NewRealPublisher(c, 10, nil)

	require.NoError(t, p.PublishSystem(SystemEvent{Timestamp: ts, Event: "STARTUP"}))
	require.NoError(t, p.Publish(logic.Change{Timestamp: ts, Direction: logic.DirectionReset, Value: 0}))
	assert.Empty(t, c.sent)
	assert.Equal(t, 2, p.Buffered())

	// First connection replays in order, without RECONNECTED
	c.setConnected(true)
	p.OnConnect(c)

	require.Len(t, c.sent, 2)
	assert.Equal(t, TopicSystem, c.sent[0].topic)
	assert.Equal(t, Topic, c.sent[1].topic)
	assert.Zero(t, p.Buffered())
}

func TestRealPublisherAnnouncesReconnect(t *testing.T) {
	c := &fakeClient{connected: true}
	p := NewRealPublisher(c, 10, nil)
	p.now = func() time.Time { return ts }

	p.OnConnect(c)
	assert.Empty(t, c.sent)

	c.setConnected(false)
	require.NoError(t, p.Publish(logic.Change{Timestamp: ts, Direction: logic.DirectionIncrease, Value: 4}))
	c.setConnected(true)
	p.OnConnect(c)

	require.Len(t, c.sent, 2)
	assert.Equal(t, Topic, c.sent[0].topic)
	assert.JSONEq(t, `{"system":{"timestamp":"2026-01-14T09:30:00.25Z","event":"RECONNECTED"}}`, string(c.sent[1].payload))
}

func TestRealPublisherReplayFailureRebuffers(t *testing.T) {
	c := &fakeClient{}
	p := NewRealPublisher(c, 10, nil)
	p.Publish(logic.Change{Direction: logic.DirectionIncrease})
	p.Publish(logic.Change{Direction: logic.DirectionDecrease})

	c.setConnected(true)
	c.publishErr = errors.New("not authorized")
	p.OnConnect(c)

	assert.Equal(t, 2, p.Buffered())
}

func TestRealPublisherBufferOverflow(t *testing.T) {
	c := &fakeClient{}
	p := NewRealPublisher(c, 3, nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Publish(logic.Change{Value: int64(i)}))
	}
	assert.Equal(t, 3, p.Buffered())
}

func TestRealPublisherPublishError(t *testing.T) {
	c := &fakeClient{connected: true, publishErr: errors.New("quota exceeded")}
	p := NewRealPublisher(c, 10, nil)

	err := p.Publish(logic.Change{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestRealPublisherClose(t *testing.T) {
	c := &fakeClient{connected: true}
	p := NewRealPublisher(c, 0, nil)
	require.NoError(t, p.Close())
	assert.True(t, c.disconnected)
}

func TestNewClientOptions(t *testing.T) {
	c := NewClient("tcp://broker.local:1883", "volume-counter-test", nil)
	r := c.OptionsReader()

	assert.Equal(t, "volume-counter-test", r.ClientID())
	require.Len(t, r.Servers(), 1)
	assert.Equal(t, "broker.local:1883", r.Servers()[0].Host)
	assert.True(t, r.AutoReconnect())
	assert.True(t, r.WillEnabled())
	assert.Equal(t, TopicSystem, r.WillTopic())
	assert.Equal(t, WillPayload(), r.WillPayload())
	assert.True(t, r.WillRetained())
	assert.False(t, c.IsConnected())
}

func TestConnectFailureIsNotFatal(t *testing.T) {
	c := &fakeClient{connectErr: errors.New("connection refused")}
	Connect(c, nil)
	assert.Equal(t, 1, c.connectCalls)
}
