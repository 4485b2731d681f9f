package chat

import (
	"encoding/json"
	"sync"
	"time"

	"creatorhub/internal/core/domain"
	"creatorhub/pkg/realtime"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const sendBufferSize = 64

// client is one connected user. Only writePump writes to conn.
type client struct {
	userID  domain.UserID
	conn    *websocket.Conn
	send    chan realtime.Envelope
	limiter *rate.Limiter

	done      chan struct{}
	closeOnce sync.Once
	closeCode int
}

func newClient(userID domain.UserID, conn *websocket.Conn, limiter *rate.Limiter) *client {
	return &client{
		userID:    userID,
		conn:      conn,
		send:      make(chan realtime.Envelope, sendBufferSize),
		limiter:   limiter,
		done:      make(chan struct{}),
		closeCode: websocket.CloseNormalClosure,
	}
}

// enqueue queues env for writing. A client whose buffer is full is closed
// rather than allowed to stall the sender.
func (c *client) enqueue(env realtime.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- env:
		return true
	default:
		c.close(websocket.ClosePolicyViolation)
		return false
	}
}

// close stops writePump, which sends a close frame with code and closes conn.
func (c *client) close(code int) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		close(c.done)
	})
}

func (c *client) writePump(pingInterval, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(env); err != nil {
				c.close(websocket.CloseAbnormalClosure)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close(websocket.CloseAbnormalClosure)
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(c.closeCode, ""),
				time.Now().Add(writeTimeout))
			return
		}
	}
}

func messageEnvelope(msg *domain.ChatMessage) realtime.Envelope {
	payload, _ := json.Marshal(realtime.MessagePayload{Content: msg.Content})
	return realtime.Envelope{
		Type:    realtime.TypeMessage,
		ID:      msg.ID,
		From:    string(msg.From),
		To:      string(msg.To),
		SentAt:  msg.SentAt,
		Payload: payload,
	}
}

func ackEnvelope(msg *domain.ChatMessage) realtime.Envelope {
	return realtime.Envelope{
		Type:   realtime.TypeAck,
		ID:     msg.ID,
		To:     string(msg.To),
		SentAt: msg.SentAt,
	}
}
