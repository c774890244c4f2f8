package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireMulticast skips t unless an interface can carry mDNS traffic.
func requireMulticast(t *testing.T) {
	t.Helper()
	ifaces, err := net.Interfaces()
	if err != nil {
		t.Skipf("cannot list interfaces: %v", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagMulticast != 0 && iface.Flags&net.FlagLoopback == 0 {
			return
		}
	}
	t.Skip("no multicast capable interface, mdns cannot be exercised")
}

func TestAdvertiseResolve(t *testing.T) {
	requireMulticast(t)

	m := DefaultMDNS
	m.Instance = "shoe_" + uuid.NewString()[:8]
	m.Timeout = 2 * time.Second
	port := 40000 + int(uuid.New().ID()%20000)

	a, err := Advertise(m, "shoesim-test", port, []net.IP{net.IPv4(127, 0, 0, 1)}, "rt=shoe")
	if err != nil {
		t.Skipf("cannot advertise over mdns: %v", err)
	}
	defer func() {
		errS := a.Shutdown()
		require.NoError(t, errS)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := m.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), got)

	m.Instance = "shoe_" + uuid.NewString()[:8]
	m.Timeout = 500 * time.Millisecond
	_, err = m.Resolve(ctx)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestQueryContext(t *testing.T) {
	params := mdns.DefaultParams(DefaultService)
	params.Entries = make(chan *mdns.ServiceEntry, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, QueryContext(ctx, params), context.Canceled)

	requireMulticast(t)
	params.Timeout = 3 * time.Second
	ctx, cancel = context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := QueryContext(ctx, params)
	assert.Less(t, time.Since(start), time.Second)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Skipf("mdns query unavailable: %v", err)
	}
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
