package wspool

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pointskeeper/internal/entities"
	"pointskeeper/internal/logging"
	"pointskeeper/internal/metrics"
)

func jsonUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

const (
	tickInterval        = 250 * time.Millisecond
	pingIdleThreshold    = 60 * time.Second
	pongDeadline         = 10 * time.Second
	reconnectBackoff     = time.Second
)

// Pool owns every connection; all mutation happens on the goroutine that
// calls Run.
type Pool struct {
	wsURL     string
	authToken string
	dialer    *websocket.Dialer
	logger    *logging.Logger
	metrics   *metrics.Collectors

	requestChan chan Request
	outputChan  chan Message
	frameChan   chan frame
	dialChan    chan dialResult

	connections   map[int]*poolConnection
	dialInFlight  map[int]bool
	pendingTopics map[int][]entities.Topic
	nextConnID    int

	ctx context.Context
}

func New(wsURL, authToken string, logger *logging.Logger, mc *metrics.Collectors) *Pool {
	return &Pool{
		wsURL:         wsURL,
		authToken:     authToken,
		dialer:        websocket.DefaultDialer,
		logger:        logger,
		metrics:       mc,
		requestChan:   make(chan Request, 64),
		outputChan:    make(chan Message, 256),
		frameChan:     make(chan frame, 256),
		dialChan:      make(chan dialResult, 16),
		connections:   make(map[int]*poolConnection),
		dialInFlight:  make(map[int]bool),
		pendingTopics: make(map[int][]entities.Topic),
	}
}

// Output is the single channel every received (or synthesized) topic
// payload is delivered on.
func (p *Pool) Output() <-chan Message { return p.outputChan }

func (p *Pool) Listen(topic entities.Topic) {
	p.requestChan <- Request{Kind: RequestListen, Topic: topic}
}

func (p *Pool) Unlisten(topic entities.Topic) {
	p.requestChan <- Request{Kind: RequestUnlisten, Topic: topic}
}

// Run is the pool's event loop: select over { requestChan, tick(250ms),
// connection-reader completion, dial completion }. Dialing never happens on
// this goroutine directly — see startDial — so a streamer stuck retrying a
// dead endpoint never stalls listen/unlisten requests or frames for every
// other connection in the pool.
func (p *Pool) Run(ctx context.Context) error {
	p.ctx = ctx
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.closeAll()
			return ctx.Err()
		case req := <-p.requestChan:
			p.handleRequest(req)
		case f := <-p.frameChan:
			p.handleFrame(f)
		case r := <-p.dialChan:
			p.handleDialResult(r)
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Pool) closeAll() {
	for _, c := range p.connections {
		c.conn.Close()
	}
}

func (p *Pool) handleRequest(req Request) {
	switch req.Kind {
	case RequestListen:
		p.dispatchListen(req.Topic)
	case RequestUnlisten:
		p.dispatchUnlisten(req.Topic)
	}
}

// dispatchListen finds a connection with room for the topic, queues onto an
// already-dialing one, or starts a new dial. It never blocks: a connection
// that isn't open yet just parks the topic in pendingTopics until
// handleDialResult delivers the socket.
func (p *Pool) dispatchListen(topic entities.Topic) {
	key := topicKeyOf(topic)
	for _, c := range p.connections {
		if c.hasTopic(key) {
			return // idempotent: already subscribed somewhere
		}
	}
	for _, topics := range p.pendingTopics {
		for _, t := range topics {
			if topicKeyOf(t) == key {
				return // already queued on an in-flight dial
			}
		}
	}

	if target := p.findRoomyConnection(); target != nil {
		p.subscribe(target, topic)
		return
	}

	for id := range p.dialInFlight {
		if len(p.pendingTopics[id]) < MaxTopicsPerConnection {
			p.pendingTopics[id] = append(p.pendingTopics[id], topic)
			return
		}
	}

	p.nextConnID++
	id := p.nextConnID
	p.pendingTopics[id] = []entities.Topic{topic}
	p.startDial(id)
}

// subscribe issues the Listen command against an already-open connection.
// A write failure tears the connection down and re-dispatches every topic
// it held (including this one) through the normal async path.
func (p *Pool) subscribe(target *poolConnection, topic entities.Topic) {
	sub := subscription{topic: topic, nonce: newNonce()}
	if err := p.sendListen(target, sub); err != nil {
		p.reconnect(target)
		p.dispatchListen(topic)
		return
	}
	target.subs = append(target.subs, sub)
	if p.metrics != nil {
		p.metrics.ActiveTopics.Inc()
	}
}

// startDial kicks off a dial on its own goroutine so a dead endpoint's
// retry-with-backoff never blocks Run's select loop. The result lands on
// dialChan and is applied by handleDialResult.
func (p *Pool) startDial(id int) {
	p.dialInFlight[id] = true
	go func() {
		conn, err := p.dialConnection(id)
		r := dialResult{id: id, conn: conn, err: err}
		// Prefer the buffered send so a result is delivered even when ctx is
		// already done; only wait on ctx when dialChan is full.
		select {
		case p.dialChan <- r:
			return
		default:
		}
		select {
		case p.dialChan <- r:
		case <-p.ctx.Done():
		}
	}()
}

type dialResult struct {
	id   int
	conn *poolConnection
	err  error
}

// handleDialResult registers a freshly dialed connection and flushes every
// topic that queued up while the dial was in flight.
func (p *Pool) handleDialResult(r dialResult) {
	delete(p.dialInFlight, r.id)
	topics := p.pendingTopics[r.id]
	delete(p.pendingTopics, r.id)
	if r.err != nil {
		p.logger.Errorf("wspool: dial connection %d abandoned: %v", r.id, r.err)
		return
	}
	p.connections[r.conn.id] = r.conn
	for _, t := range topics {
		p.dispatchListen(t)
	}
}

func (p *Pool) findRoomyConnection() *poolConnection {
	for _, c := range p.connections {
		if c.state == StateOpen && c.topicCount() < MaxTopicsPerConnection {
			return c
		}
	}
	return nil
}

// dispatchUnlisten issues the Unlisten command for topic's owning
// connection, including the synthetic StreamDown emitted for
// VideoPlaybackById topics.
func (p *Pool) dispatchUnlisten(topic entities.Topic) {
	key := topicKeyOf(topic)
	owner, sub, ok := p.findOwner(key)
	if !ok {
		return
	}
	if err := p.sendUnlisten(owner, sub); err != nil {
		p.reconnect(owner)
		return
	}
	owner.removeTopic(key)
	if p.metrics != nil {
		p.metrics.ActiveTopics.Dec()
	}

	if topic.Kind == entities.TopicVideoPlayback {
		select {
		case p.outputChan <- Message{Kind: MessageSyntheticStreamDown, Topic: topic, InnerType: "stream-down"}:
		case <-p.ctx.Done():
		}
	}

	if owner.topicCount() == 0 {
		delete(p.connections, owner.id)
		owner.conn.Close()
	}
}

func (p *Pool) findOwner(key topicKey) (*poolConnection, subscription, bool) {
	for _, c := range p.connections {
		for _, s := range c.subs {
			if topicKeyOf(s.topic) == key {
				return c, s, true
			}
		}
	}
	return nil, subscription{}, false
}

// reconnect tears down a connection and re-issues every topic it held
// through the normal dispatch path, transparently to downstream consumers.
func (p *Pool) reconnect(c *poolConnection) {
	c.state = StateReconnect
	topics := make([]entities.Topic, len(c.subs))
	for i, s := range c.subs {
		topics[i] = s.topic
	}
	delete(p.connections, c.id)
	c.conn.Close()
	if p.metrics != nil {
		p.metrics.Reconnects.Inc()
		p.metrics.ActiveTopics.Sub(float64(len(topics)))
	}
	for _, t := range topics {
		p.dispatchListen(t)
	}
}

func (p *Pool) handleFrame(f frame) {
	conn, ok := p.connections[f.connID]
	if !ok {
		return
	}
	if f.err != nil {
		p.reconnect(conn)
		return
	}
	conn.lastServerActivity = time.Now()

	wf, err := parseWireFrame(f.raw)
	if err != nil {
		p.logger.Errorf("wspool: malformed frame: %v", err)
		return
	}

	switch wf.Type {
	case "PONG":
		conn.pingOutstanding = false
	case "RECONNECT":
		p.reconnect(conn)
	case "RESPONSE":
		p.handleResponse(conn, wf)
	case "MESSAGE":
		p.handleMessagePayload(conn, wf.Data)
	}
}

type messageEnvelope struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

func (p *Pool) handleResponse(conn *poolConnection, wf wireFrame) {
	if wf.Error == "" {
		return // success, no bookkeeping required beyond the stored subscription
	}
	conn.pendingRetryNonces = append(conn.pendingRetryNonces, wf.Nonce)
	for _, s := range conn.subs {
		if s.nonce == wf.Nonce {
			conn.removeTopic(topicKeyOf(s.topic))
			if p.metrics != nil {
				p.metrics.ActiveTopics.Dec()
			}
			p.dispatchListen(s.topic)
			break
		}
	}
}

func (p *Pool) handleMessagePayload(conn *poolConnection, raw []byte) {
	var env messageEnvelope
	if err := jsonUnmarshal(raw, &env); err != nil {
		p.logger.Errorf("wspool: malformed MESSAGE envelope: %v", err)
		return
	}
	topic, ok := parseTopic(env.Topic)
	if !ok {
		return
	}

	innerType, ok := peekInnerType(topic.Kind, []byte(env.Message))
	if !ok {
		return // unrecognized sub-kind dropped (video-playback filtering, etc.)
	}

	select {
	case p.outputChan <- Message{Kind: MessagePlatform, Topic: topic, InnerType: innerType, Raw: []byte(env.Message)}:
	case <-p.ctx.Done():
	}
}

// peekInnerType extracts the inner reply's own sub-kind. For
// VideoPlaybackById topics only stream-up and stream-down are forwarded;
// everything else is dropped.
func peekInnerType(kind entities.TopicKind, raw []byte) (string, bool) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := jsonUnmarshal(raw, &probe); err != nil {
		return "", false
	}
	if kind == entities.TopicVideoPlayback {
		switch probe.Type {
		case "stream-up", "stream-down":
			return probe.Type, true
		default:
			return "", false
		}
	}
	return probe.Type, true
}

func parseTopic(wire string) (entities.Topic, bool) {
	idx := strings.LastIndex(wire, ".")
	if idx < 0 {
		return entities.Topic{}, false
	}
	prefix, id := wire[:idx], wire[idx+1:]
	switch entities.TopicKind(prefix) {
	case entities.TopicPredictions, entities.TopicCommunityUser, entities.TopicRaid, entities.TopicVideoPlayback:
		return entities.Topic{Kind: entities.TopicKind(prefix), ChannelID: id}, true
	default:
		return entities.Topic{}, false
	}
}

// tick is the pool's periodic maintenance pass: ping idle connections,
// reconnect stale ones, drain retry bookkeeping, drop empty connections.
func (p *Pool) tick() {
	now := time.Now()
	for _, c := range p.connections {
		if c.state != StateOpen {
			continue
		}
		if c.pingOutstanding && now.Sub(c.pingSentAt) > pongDeadline {
			p.reconnect(c)
			continue
		}
		if !c.pingOutstanding && now.Sub(c.lastServerActivity) >= pingIdleThreshold {
			if err := p.sendPing(c); err != nil {
				p.reconnect(c)
				continue
			}
			c.pingOutstanding = true
			c.pingSentAt = now
		}
		c.pendingRetryNonces = nil
	}
	for id, c := range p.connections {
		if c.topicCount() == 0 {
			delete(p.connections, id)
			c.conn.Close()
		}
	}
	if p.metrics != nil {
		p.metrics.ActiveConnections.Set(float64(len(p.connections)))
	}
}
