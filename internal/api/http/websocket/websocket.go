package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// NOTE: 暂时允许所有来源
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	WRITE_TIMEOUT    = 10 * time.Second
	MAX_MESSAGE_SIZE = 8 * 1024
)

// readDeadline gives a client a little more than one missed ping before the
// read loop gives up on it.
func readDeadline(pingInterval time.Duration) time.Duration {
	return pingInterval*2 + pingInterval/2
}
