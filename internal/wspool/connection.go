package wspool

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// poolConnection is owned exclusively by the pool's single event-loop
// goroutine; no locking is needed because only that goroutine ever reads or
// mutates it.
type poolConnection struct {
	id    int
	conn  *websocket.Conn
	state StreamState

	subs               []subscription
	pendingRetryNonces []string

	lastServerActivity time.Time
	pingOutstanding     bool
	pingSentAt          time.Time
}

func (c *poolConnection) topicCount() int { return len(c.subs) }

func (c *poolConnection) hasTopic(t topicKey) bool {
	for _, s := range c.subs {
		if topicKeyOf(s.topic) == t {
			return true
		}
	}
	return false
}

func (c *poolConnection) removeTopic(t topicKey) (subscription, bool) {
	for i, s := range c.subs {
		if topicKeyOf(s.topic) == t {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return s, true
		}
	}
	return subscription{}, false
}

type wireFrame struct {
	Type  string          `json:"type"`
	Nonce string          `json:"nonce,omitempty"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type listenFrame struct {
	Type  string           `json:"type"`
	Nonce string           `json:"nonce"`
	Data  listenFrameData  `json:"data"`
}

type listenFrameData struct {
	Topics    []string `json:"topics"`
	AuthToken string   `json:"auth_token"`
}

func (p *Pool) sendListen(c *poolConnection, sub subscription) error {
	frame := listenFrame{
		Type:  "LISTEN",
		Nonce: sub.nonce,
		Data: listenFrameData{
			Topics:    []string{sub.topic.String()},
			AuthToken: p.authToken,
		},
	}
	return c.conn.WriteJSON(frame)
}

func (p *Pool) sendUnlisten(c *poolConnection, sub subscription) error {
	frame := struct {
		Type  string `json:"type"`
		Nonce string `json:"nonce"`
		Data  struct {
			Topics []string `json:"topics"`
		} `json:"data"`
	}{Type: "UNLISTEN", Nonce: sub.nonce}
	frame.Data.Topics = []string{sub.topic.String()}
	return c.conn.WriteJSON(frame)
}

func (p *Pool) sendPing(c *poolConnection) error {
	return c.conn.WriteJSON(map[string]string{"type": "PING"})
}

// dialConnection blocks, retrying every second, until a fresh socket opens
// and its initial PING succeeds, rather than failing the caller fast. Always
// invoked from its own goroutine (see startDial) — never from the pool's
// event-loop goroutine — so a dead endpoint's retries never stall other
// connections' listens, unlistens, or frames.
func (p *Pool) dialConnection(id int) (*poolConnection, error) {
	for {
		select {
		case <-p.ctx.Done():
			return nil, p.ctx.Err()
		default:
		}

		conn, _, err := p.dialer.Dial(p.wsURL, nil)
		if err != nil {
			p.logger.Errorf("wspool: dial connection %d failed: %v", id, err)
			time.Sleep(time.Second)
			continue
		}
		if err := conn.WriteJSON(map[string]string{"type": "PING"}); err != nil {
			conn.Close()
			time.Sleep(time.Second)
			continue
		}

		pc := &poolConnection{
			id:                 id,
			conn:               conn,
			state:              StateOpen,
			lastServerActivity: time.Now(),
		}
		go p.readLoop(pc)
		return pc, nil
	}
}

// readLoop is the per-connection reader task: it forwards parsed frames to
// the pool's single-owner state via frameChan and terminates on socket
// close.
func (p *Pool) readLoop(c *poolConnection) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case p.frameChan <- frame{connID: c.id, err: err}:
			case <-p.ctx.Done():
			}
			return
		}
		select {
		case p.frameChan <- frame{connID: c.id, raw: data}:
		case <-p.ctx.Done():
			return
		}
	}
}

type frame struct {
	connID int
	raw    []byte
	err    error
}

func parseWireFrame(raw []byte) (wireFrame, error) {
	var f wireFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return wireFrame{}, fmt.Errorf("parse frame: %w", err)
	}
	return f, nil
}
