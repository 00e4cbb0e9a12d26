package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/A8-Moke/SignalR/hublifetime"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	readLimit  = 512 * 1024
	sendBuffer = 256
)

// clientInvocation is the wire shape delivered to browsers/clients. It is
// a plain JSON struct, deliberately simpler than WireCodec's type-tagged
// envelope — clients don't need polymorphic argument rehydration, they
// just need the JSON values.
type clientInvocation struct {
	InvocationID string `json:"invocationId"`
	Target       string `json:"target"`
	Arguments    []any  `json:"arguments"`
	NonBlocking  bool   `json:"nonBlocking"`
}

// Connection adapts a gorilla websocket.Conn to hublifetime.Connection. Its
// outbound sink is a buffered channel drained by one writer goroutine, so
// concurrent Write calls are serialized the way the LifetimeManager
// contract requires.
type Connection struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn

	id       string
	userID   string
	features *hublifetime.FeatureBag

	out  chan []byte
	once sync.Once
}

// New wraps conn as a live Connection. The caller is responsible for
// calling OnConnected with it and OnDisconnected once ReadLoop returns.
func New(parent context.Context, conn *websocket.Conn, connectionID, userID string) *Connection {
	ctx, cancel := context.WithCancel(parent)
	c := &Connection{
		ctx:      ctx,
		cancel:   cancel,
		conn:     conn,
		id:       connectionID,
		userID:   userID,
		features: hublifetime.NewFeatureBag(),
		out:      make(chan []byte, sendBuffer),
	}
	go c.writeLoop()
	return c
}

func (c *Connection) ConnectionID() string              { return c.id }
func (c *Connection) UserID() string                    { return c.userID }
func (c *Connection) Features() *hublifetime.FeatureBag { return c.features }

func (c *Connection) Write(ctx context.Context, msg *hublifetime.InvocationMessage) error {
	data, err := json.Marshal(clientInvocation{
		InvocationID: msg.InvocationID,
		Target:       msg.Target,
		Arguments:    msg.Arguments,
		NonBlocking:  msg.NonBlocking,
	})
	if err != nil {
		return err
	}
	select {
	case c.out <- data:
		return nil
	case <-c.ctx.Done():
		return errors.New("hublifetime/ws: connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadLoop blocks reading client frames, invoking onMessage for each, until
// the socket errs or closes. It closes the Connection before returning;
// the caller still calls OnDisconnected once it returns.
func (c *Connection) ReadLoop(onMessage func(data []byte)) {
	defer c.Close()
	c.conn.SetReadLimit(readLimit)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if len(data) > 0 {
			onMessage(data)
		}
	}
}

func (c *Connection) Close() {
	c.once.Do(func() {
		c.cancel()
		close(c.out)
		_ = c.conn.Close()
	})
}

func (c *Connection) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data, ok := <-c.out:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
