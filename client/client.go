package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
)

// Conn is the part of a go-coap client connection used by Client.
// *udpClient.Conn satisfies it for both plain UDP and DTLS sessions.
type Conn interface {
	Get(ctx context.Context, path string, opts ...message.Option) (*pool.Message, error)
	Put(ctx context.Context, path string, contentFormat message.MediaType, payload io.ReadSeeker, opts ...message.Option) (*pool.Message, error)
	Delete(ctx context.Context, path string, opts ...message.Option) (*pool.Message, error)
	ReleaseMessage(m *pool.Message)
	Close() error
}

// DialFunc opens a new session to the device.
type DialFunc = func(ctx context.Context) (Conn, error)

var DefaultConfig = Config{
	Timeout:       5 * time.Second,
	ContentFormat: message.TextPlain,
}

type Config struct {
	// Timeout bounds a single request/response exchange. Zero disables it.
	Timeout time.Duration
	// SessionPerRequest opens and closes a session around every exchange.
	SessionPerRequest bool
	ContentFormat     message.MediaType
}

// Client issues requests to a single device.
type Client struct {
	dial DialFunc
	cfg  Config

	mutex  sync.Mutex
	conn   Conn
	closed bool
}

func New(dial DialFunc, opts ...Option) *Client {
	cfg := DefaultConfig
	for _, o := range opts {
		o.apply(&cfg)
	}
	return &Client{
		dial: dial,
		cfg:  cfg,
	}
}

// Open dials the shared session. It is a no-op in session-per-request mode.
func (c *Client) Open(ctx context.Context) error {
	if c.cfg.SessionPerRequest {
		return nil
	}
	_, err := c.session(ctx)
	return err
}

func (c *Client) session(ctx context.Context) (Conn, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot dial: %w", err)
	}
	c.conn = conn
	return conn, nil
}

// Do sends the request and waits for the response.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	var conn Conn
	if c.cfg.SessionPerRequest {
		c.mutex.Lock()
		closed := c.closed
		c.mutex.Unlock()
		if closed {
			return Response{}, ErrClosed
		}
		cc, err := c.dial(ctx)
		if err != nil {
			return Response{}, fmt.Errorf("cannot dial: %w", err)
		}
		defer cc.Close()
		conn = cc
	} else {
		cc, err := c.session(ctx)
		if err != nil {
			return Response{}, err
		}
		conn = cc
	}

	resp, err := c.exchange(ctx, conn, req)
	if err != nil {
		return Response{}, fmt.Errorf("cannot send %v %v: %w", req.Method, req.Path, err)
	}
	defer conn.ReleaseMessage(resp)
	payload, err := resp.ReadBody()
	if err != nil {
		return Response{}, fmt.Errorf("cannot read body of %v %v: %w", req.Method, req.Path, err)
	}
	return Response{
		Code:    resp.Code(),
		Payload: payload,
	}, nil
}

func (c *Client) exchange(ctx context.Context, conn Conn, req Request) (*pool.Message, error) {
	path := "/" + strings.TrimPrefix(req.Path, "/")
	switch req.Method {
	case codes.GET:
		return conn.Get(ctx, path)
	case codes.PUT:
		return conn.Put(ctx, path, c.cfg.ContentFormat, bytes.NewReader(req.Payload))
	case codes.DELETE:
		return conn.Delete(ctx, path)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownMethod, req.Method)
}

// Close closes the shared session. Subsequent requests fail with ErrClosed.
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
