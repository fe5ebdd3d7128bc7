// Package websocket carries the host link over a websocket connection.
package websocket

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/panel.go/pkg/framework"
	"github.com/robotalks/panel.go/pkg/l0/transport"
)

// DefaultPath is the default websocket endpoint.
const DefaultPath = "/link"

// conn closes done when the link lets go of the connection.
type conn struct {
	*websocket.Conn
	once sync.Once
	done chan struct{}
}

func (c *conn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() { close(c.done) })
	return err
}

// Handler attaches every accepted connection to link, replacing the
// previous one.
func Handler(link *transport.Link) http.Handler {
	return websocket.Handler(func(ws *websocket.Conn) {
		ws.PayloadType = websocket.BinaryFrame
		c := &conn{Conn: ws, done: make(chan struct{})}
		glog.Infof("websocket: host connected from %s", ws.Request().RemoteAddr)
		link.Attach(c)
		<-c.done
		glog.Infof("websocket: host disconnected")
	})
}

// Server serves Handler on an address.
type Server struct {
	Addr string
	Path string
	Link *transport.Link
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	path := s.Path
	if path == "" {
		path = DefaultPath
	}
	mux := http.NewServeMux()
	mux.Handle(path, Handler(s.Link))
	server := &http.Server{Addr: s.Addr, Handler: mux}
	glog.Infof("websocket: listening on %s%s", s.Addr, path)
	return framework.RunWithContextCloser(ctx, server, server.ListenAndServe)
}

// Dial connects to a websocket link endpoint.
func Dial(url, origin string) (io.ReadWriteCloser, error) {
	ws, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	ws.PayloadType = websocket.BinaryFrame
	return ws, nil
}
