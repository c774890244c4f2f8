package device

import (
	"bytes"
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	coapNet "github.com/plgd-dev/go-coap/v3/net"
	"github.com/plgd-dev/go-coap/v3/udp"
	udpClient "github.com/plgd-dev/go-coap/v3/udp/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const Timeout = time.Second * 8

func newTestShoe(t *testing.T) (*Shoe, *udpClient.Conn) {
	t.Helper()
	cfg := DefaultConfig
	cfg.Errors = func(err error) {
		t.Log(err)
	}
	shoe := New(cfg)

	l, err := coapNet.NewListenUDP("udp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		errS := shoe.Serve(ctx, l)
		assert.NoError(t, errS)
	}()

	cc, err := udp.Dial(l.LocalAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() {
		errC := cc.Close()
		require.NoError(t, errC)
		<-cc.Done()
		cancel()
		wg.Wait()
		errC = l.Close()
		require.NoError(t, errC)
	})
	return shoe, cc
}

func get(t *testing.T, cc *udpClient.Conn, path string) (codes.Code, []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	resp, err := cc.Get(ctx, path)
	require.NoError(t, err)
	body, err := resp.ReadBody()
	require.NoError(t, err)
	return resp.Code(), body
}

func put(t *testing.T, cc *udpClient.Conn, path string, payload []byte) codes.Code {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	resp, err := cc.Put(ctx, path, message.TextPlain, bytes.NewReader(payload))
	require.NoError(t, err)
	return resp.Code()
}

func del(t *testing.T, cc *udpClient.Conn, path string) codes.Code {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	resp, err := cc.Delete(ctx, path)
	require.NoError(t, err)
	return resp.Code()
}

func TestShoeDefaults(t *testing.T) {
	_, cc := newTestShoe(t)
	tests := []struct {
		path string
		want string
	}{
		{path: ShoelacePath, want: "Untie"},
		{path: LEDColorPath, want: "000000"},
		{path: StepsPath, want: "000"},
		{path: SizePath, want: "20"},
		{path: NamePath, want: "No name"},
		{path: EspressifPath, want: "Hello"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := get(t, cc, tt.path)
			assert.Equal(t, codes.Content, code)
			assert.Equal(t, tt.want, string(body))
		})
	}
}

func TestShoePutReplyCode(t *testing.T) {
	_, cc := newTestShoe(t)

	assert.Equal(t, codes.Created, put(t, cc, ShoelacePath, []byte("Tie")))
	_, body := get(t, cc, ShoelacePath)
	assert.Equal(t, "Tie", string(body))
	assert.Equal(t, codes.Changed, put(t, cc, ShoelacePath, []byte("Untie")))
	assert.Equal(t, codes.Created, put(t, cc, ShoelacePath, []byte("tie")))

	assert.Equal(t, codes.Created, put(t, cc, NamePath, []byte("Judith")))
	_, body = get(t, cc, NamePath)
	assert.Equal(t, "Judith", string(body))
	assert.Equal(t, codes.Changed, put(t, cc, NamePath, []byte("Al")))
	_, body = get(t, cc, NamePath)
	assert.Equal(t, "Al", string(body))

	assert.Equal(t, codes.Deleted, del(t, cc, NamePath))
	_, body = get(t, cc, NamePath)
	assert.Equal(t, "No name", string(body))
	assert.Equal(t, codes.Created, put(t, cc, NamePath, []byte("Judith")))
}

func TestShoeEmptyPutRestoresDefault(t *testing.T) {
	_, cc := newTestShoe(t)
	tests := []struct {
		path string
		set  string
		want string
	}{
		{path: ShoelacePath, set: "Tie", want: "Untie"},
		{path: LEDColorPath, set: "FFFFFF", want: "000000"},
		{path: NamePath, set: "Judith", want: "No name"},
		{path: EspressifPath, set: "Hi", want: "Hello"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, codes.Created, put(t, cc, tt.path, []byte(tt.set)))
			assert.Equal(t, codes.Changed, put(t, cc, tt.path, nil))
			code, body := get(t, cc, tt.path)
			assert.Equal(t, codes.Content, code)
			assert.Equal(t, tt.want, string(body))
		})
	}
}

func TestShoeTruncatesLongPayload(t *testing.T) {
	_, cc := newTestShoe(t)
	tests := []struct {
		path    string
		payload string
		want    string
	}{
		{path: ShoelacePath, payload: "Untied!", want: "Untied"},
		{path: LEDColorPath, payload: "FFFFFF0011", want: "FFFFFF00"},
		{path: NamePath, payload: "Judith Anne Marguerite", want: "Judith Anne Margueri"},
		{path: EspressifPath, payload: "Hello world", want: "Hello worl"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			put(t, cc, tt.path, []byte(tt.payload))
			_, body := get(t, cc, tt.path)
			assert.Equal(t, tt.want, string(body))
		})
	}
}

func TestShoeMethodNotAllowed(t *testing.T) {
	_, cc := newTestShoe(t)

	assert.Equal(t, codes.MethodNotAllowed, put(t, cc, SizePath, []byte("44")))
	assert.Equal(t, codes.MethodNotAllowed, put(t, cc, StepsPath, []byte("1000")))
	assert.Equal(t, codes.MethodNotAllowed, del(t, cc, SizePath))
	assert.Equal(t, codes.MethodNotAllowed, del(t, cc, StepsPath))

	assert.Equal(t, codes.Created, put(t, cc, ShoelacePath, []byte("Tie")))
	assert.Equal(t, codes.MethodNotAllowed, del(t, cc, ShoelacePath))
	_, body := get(t, cc, ShoelacePath)
	assert.Equal(t, "Tie", string(body))

	_, body = get(t, cc, SizePath)
	assert.Equal(t, "20", string(body))

	code, _ := get(t, cc, "/shoe/heel")
	assert.Equal(t, codes.NotFound, code)
}

func TestShoeSteps(t *testing.T) {
	shoe, cc := newTestShoe(t)
	shoe.Step(1)
	_, body := get(t, cc, StepsPath)
	assert.Equal(t, "1", string(body))
	shoe.Step(40)
	_, body = get(t, cc, StepsPath)
	assert.Equal(t, "41", string(body))

	stop := make(chan struct{})
	shoe.Walk(stop, time.Millisecond)
	require.Eventually(t, func() bool {
		return shoe.Steps() >= 45
	}, Timeout, time.Millisecond)
	close(stop)
}

func TestShoeStepsWrap(t *testing.T) {
	shoe := New(DefaultConfig)
	assert.Equal(t, uint32(math.MaxUint32-1), shoe.Step(math.MaxUint32-1))
	assert.Equal(t, uint32(0), shoe.Step(1))
	v, err := shoe.Value(StepsPath)
	require.NoError(t, err)
	assert.Equal(t, []byte(StepsDefault), v)
}

func TestShoeValue(t *testing.T) {
	shoe := New(DefaultConfig)
	v, err := shoe.Value(LEDColorPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("000000"), v)
	_, err = shoe.Value("/shoe/heel")
	require.ErrorIs(t, err, ErrUnknownResource)
}
