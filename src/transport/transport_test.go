package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T, reply string) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				c.Read(buf)
				c.Write([]byte(reply))
			}(conn)
		}
	}()
	return ln
}

func TestExchangeReturnsPeerReply(t *testing.T) {
	ln := echoServer(t, "OK")
	defer ln.Close()

	tr := New(DefaultConfig())
	reply, err := tr.Exchange(context.Background(), ln.Addr().String(), "GET foo")
	require.NoError(t, err)
	assert.Equal(t, "OK", reply)
}

func TestExchangeFailsWhenNothingListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	tr := New(Config{DialTimeout: 200 * time.Millisecond, ReadTimeout: 200 * time.Millisecond})
	_, err = tr.Exchange(context.Background(), addr, "GET foo")
	assert.Error(t, err)
}

func TestSendDoesNotWaitForReply(t *testing.T) {
	ln := echoServer(t, "ignored")
	defer ln.Close()

	tr := New(DefaultConfig())
	err := tr.Send(context.Background(), ln.Addr().String(), "PROPAGATE SET a b 1")
	assert.NoError(t, err)
}
