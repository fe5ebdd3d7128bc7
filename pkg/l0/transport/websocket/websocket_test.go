package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/panel.go/pkg/l0/transport"
)

func TestHandler(t *testing.T) {
	link := transport.NewLink(64)
	server := httptest.NewServer(Handler(link))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			link.Service(ctx)
		}
	}()

	host, err := Dial("ws"+strings.TrimPrefix(server.URL, "http"), server.URL)
	require.NoError(t, err)
	defer host.Close()
	require.Eventually(t, link.Ready, time.Second, time.Millisecond)

	_, err = host.Write([]byte{0x01, 0x02, 0x00})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return link.Pending() == 3 }, time.Second, time.Millisecond)

	n, err := link.Write([]byte{0x02, 0x11, 0x00})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.NoError(t, link.Flush())
	buf := make([]byte, 8)
	n, err = host.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0x02, 0x11, 0x00}, buf[:n])
}
