package client

import (
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
)

type Option interface {
	apply(cfg *Config)
}

// TimeoutOpt bounds a single exchange.
type TimeoutOpt struct {
	timeout time.Duration
}

func (o TimeoutOpt) apply(cfg *Config) {
	cfg.Timeout = o.timeout
}

func WithTimeout(timeout time.Duration) TimeoutOpt {
	return TimeoutOpt{timeout: timeout}
}

// SessionPerRequestOpt opens a fresh session for every exchange.
type SessionPerRequestOpt struct {
	enable bool
}

func (o SessionPerRequestOpt) apply(cfg *Config) {
	cfg.SessionPerRequest = o.enable
}

func WithSessionPerRequest(enable bool) SessionPerRequestOpt {
	return SessionPerRequestOpt{enable: enable}
}

// ContentFormatOpt sets the content format of PUT payloads.
type ContentFormatOpt struct {
	contentFormat message.MediaType
}

func (o ContentFormatOpt) apply(cfg *Config) {
	cfg.ContentFormat = o.contentFormat
}

func WithContentFormat(contentFormat message.MediaType) ContentFormatOpt {
	return ContentFormatOpt{contentFormat: contentFormat}
}
