package websocket

import (
	"io"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
)

// conn adapts a gorilla websocket connection to protocol.Conn. Gorilla
// allows only one concurrent writer, so Send serializes under a mutex.
type conn struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn) protocol.Conn {
	return &conn{ws: ws}
}

func (that *conn) Send(msg *protocol.Message) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	return that.ws.WriteJSON(msg)
}

func (that *conn) Receive() (*protocol.Message, error) {
	var msg protocol.Message
	if err := that.ws.ReadJSON(&msg); err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			return nil, io.EOF
		}

		return nil, err
	}

	return &msg, nil
}

func (that *conn) Close() error {
	that.closeOnce.Do(func() {
		that.closeErr = that.ws.Close()
	})

	return that.closeErr
}
