package client_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/shoe-iot/shoetest/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentPeer returns the address of a udp socket that never answers.
func silentPeer(t *testing.T) string {
	t.Helper()
	l, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		errC := l.Close()
		require.NoError(t, errC)
	})
	return l.LocalAddr().String()
}

func TestDialDTLSHandshakeTimeout(t *testing.T) {
	psk := client.PSK{Identity: "shoetest", Key: []byte{0xAB, 0xC1, 0x23}}

	t.Run("session-per-request", func(t *testing.T) {
		addr := silentPeer(t)
		c := client.New(client.DialDTLS(addr, psk, testDialConfig(t)),
			client.WithTimeout(200*time.Millisecond),
			client.WithSessionPerRequest(true),
		)
		defer c.Close()
		start := time.Now()
		_, err := c.Do(context.Background(), client.Request{Method: codes.GET, Path: "shoe/size"})
		require.Error(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("shared-session", func(t *testing.T) {
		addr := silentPeer(t)
		c := client.New(client.DialDTLS(addr, psk, testDialConfig(t)))
		defer c.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		start := time.Now()
		err := c.Open(ctx)
		require.Error(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}
