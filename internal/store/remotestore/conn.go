package remotestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/peerlink/internal/common"
)

// conn owns the websocket and multiplexes request/response pairs and live
// notifications over it. One reader goroutine routes every incoming frame:
// responses to the pending call registered under the frame id, notify
// frames to the live handler registered under the query id.
type conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *rpcFrame

	liveMu sync.Mutex
	live   map[string]func(json.RawMessage)

	closeOnce sync.Once
	closed    chan struct{}

	// onFailure fires at most once, when the transport dies for any reason
	// other than an explicit Close.
	failureOnce sync.Once
	onFailure   func(error)
}

func dialConn(ctx context.Context, url string, onFailure func(error)) (*conn, error) {
	dialer := *websocket.DefaultDialer
	dialer.EnableCompression = true

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", common.ErrorRemoteUnavailable, url, err)
	}

	c := &conn{
		ws:        ws,
		pending:   make(map[string]chan *rpcFrame),
		live:      make(map[string]func(json.RawMessage)),
		closed:    make(chan struct{}),
		onFailure: onFailure,
	}
	go c.readLoop()
	return c, nil
}

func (c *conn) readLoop() {
	for {
		var frame rpcFrame
		if err := c.ws.ReadJSON(&frame); err != nil {
			c.fail(err)
			return
		}

		if frame.Method == methodNotify {
			c.dispatchNotify(&frame)
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[frame.ID]
		if ok {
			delete(c.pending, frame.ID)
		}
		c.pendingMu.Unlock()

		if ok {
			ch <- &frame
		}
	}
}

func (c *conn) dispatchNotify(frame *rpcFrame) {
	var n liveNotification
	if err := json.Unmarshal(frame.Params, &n); err != nil {
		return
	}

	c.liveMu.Lock()
	fn := c.live[n.QueryID]
	c.liveMu.Unlock()

	if fn != nil {
		fn(n.Value)
	}
}

// call sends one request and waits for its response.
func (c *conn) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	id, err := common.MakeRandHexString(8)
	if err != nil {
		return nil, err
	}

	ch := make(chan *rpcFrame, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	req := &rpcRequest{ID: id, Method: method, Params: params}

	c.writeMu.Lock()
	err = c.ws.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		c.fail(err)
		return nil, fmt.Errorf("%w: %s: %w", common.ErrorRemoteUnavailable, method, err)
	}

	select {
	case frame := <-ch:
		if frame.Error != nil {
			return nil, fmt.Errorf("%w: %s: %w", common.ErrorRemoteUnavailable, method, frame.Error)
		}
		return frame.Result, nil
	case <-c.closed:
		return nil, fmt.Errorf("%w: %s: connection closed", common.ErrorRemoteUnavailable, method)
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	}
}

func (c *conn) registerLive(queryID string, fn func(json.RawMessage)) {
	c.liveMu.Lock()
	c.live[queryID] = fn
	c.liveMu.Unlock()
}

func (c *conn) unregisterLive(queryID string) {
	c.liveMu.Lock()
	delete(c.live, queryID)
	c.liveMu.Unlock()
}

// fail shuts the connection down after a transport error and reports the
// failure upstream exactly once.
func (c *conn) fail(err error) {
	c.shutdown()
	c.failureOnce.Do(func() {
		if c.onFailure != nil {
			c.onFailure(err)
		}
	})
}

// close shuts the connection down on purpose; no failure is reported.
func (c *conn) close() error {
	c.failureOnce.Do(func() {}) // disarm
	c.shutdown()
	return nil
}

func (c *conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.writeMu.Lock()
		_ = c.ws.WriteMessage(websocket.CloseMessage, msg)
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
}
