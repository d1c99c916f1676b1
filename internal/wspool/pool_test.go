package wspool

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"pointskeeper/internal/entities"
	"pointskeeper/internal/logging"
	"pointskeeper/internal/metrics"
)

func TestNewNonceLength(t *testing.T) {
	n := newNonce()
	assert.Len(t, n, nonceLength)
	for _, r := range n {
		assert.Contains(t, nonceAlphabet, string(r))
	}
}

func TestParseTopicRoundTrip(t *testing.T) {
	topic := entities.Topic{Kind: entities.TopicRaid, ChannelID: "42"}
	parsed, ok := parseTopic(topic.String())
	assert.True(t, ok)
	assert.Equal(t, topic, parsed)
}

func TestParseTopicRejectsUnknownPrefix(t *testing.T) {
	_, ok := parseTopic("not-a-real-topic.42")
	assert.False(t, ok)
}

func TestPeekInnerTypeFiltersVideoPlayback(t *testing.T) {
	up, ok := peekInnerType(entities.TopicVideoPlayback, []byte(`{"type":"stream-up"}`))
	assert.True(t, ok)
	assert.Equal(t, "stream-up", up)

	_, ok = peekInnerType(entities.TopicVideoPlayback, []byte(`{"type":"viewcount"}`))
	assert.False(t, ok)
}

func TestPeekInnerTypePassesThroughOtherTopics(t *testing.T) {
	kind, ok := peekInnerType(entities.TopicPredictions, []byte(`{"type":"event-created"}`))
	assert.True(t, ok)
	assert.Equal(t, "event-created", kind)
}

// TestFindRoomyConnectionRespectsCap exercises the Connection scaling
// scenario's 50-topic fanout boundary without opening a real socket.
func TestFindRoomyConnectionRespectsCap(t *testing.T) {
	p := &Pool{connections: map[int]*poolConnection{}}
	full := &poolConnection{id: 1, state: StateOpen}
	for i := 0; i < MaxTopicsPerConnection; i++ {
		full.subs = append(full.subs, subscription{topic: entities.Topic{Kind: entities.TopicRaid, ChannelID: string(rune('a' + i))}})
	}
	p.connections[1] = full
	assert.Nil(t, p.findRoomyConnection())

	roomy := &poolConnection{id: 2, state: StateOpen}
	p.connections[2] = roomy
	assert.Same(t, roomy, p.findRoomyConnection())
}

// TestDispatchListenQueuesOntoInFlightDial exercises the non-blocking path:
// a topic arriving while a dial is already outstanding parks on
// pendingTopics instead of starting a second dial.
func TestDispatchListenQueuesOntoInFlightDial(t *testing.T) {
	p := New("wss://example.invalid", "token", logging.New(logging.Settings{}), metrics.New(prometheus.NewRegistry()))
	p.dialInFlight[1] = true
	p.nextConnID = 1

	topic := entities.Topic{Kind: entities.TopicRaid, ChannelID: "1"}
	p.dispatchListen(topic)

	assert.Equal(t, 1, p.nextConnID, "no second dial should start while the first has room")
	assert.Equal(t, []entities.Topic{topic}, p.pendingTopics[1])
}

// TestDispatchListenStartsDialOffEventLoop confirms a listen with no roomy
// connection returns immediately (the dial itself runs on its own
// goroutine) and that a cancelled context's failed dial is cleanly drained
// by handleDialResult.
func TestDispatchListenStartsDialOffEventLoop(t *testing.T) {
	p := New("wss://example.invalid", "token", logging.New(logging.Settings{}), metrics.New(prometheus.NewRegistry()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.ctx = ctx

	topic := entities.Topic{Kind: entities.TopicRaid, ChannelID: "1"}
	p.dispatchListen(topic)

	assert.Len(t, p.dialInFlight, 1)

	select {
	case r := <-p.dialChan:
		p.handleDialResult(r)
	case <-time.After(time.Second):
		t.Fatal("dial result never arrived on a cancelled context")
	}

	assert.Empty(t, p.connections)
	assert.Empty(t, p.pendingTopics)
	assert.Empty(t, p.dialInFlight)
}

func TestHasTopicAndRemoveTopic(t *testing.T) {
	topic := entities.Topic{Kind: entities.TopicRaid, ChannelID: "1"}
	c := &poolConnection{subs: []subscription{{topic: topic, nonce: "abc"}}}
	key := topicKeyOf(topic)
	assert.True(t, c.hasTopic(key))

	removed, ok := c.removeTopic(key)
	assert.True(t, ok)
	assert.Equal(t, "abc", removed.nonce)
	assert.False(t, c.hasTopic(key))
}
