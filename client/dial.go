package client

import (
	"context"
	"fmt"
	"time"

	piondtls "github.com/pion/dtls/v2"
	"github.com/pion/logging"
	"github.com/plgd-dev/go-coap/v3/dtls"
	"github.com/plgd-dev/go-coap/v3/options"
	"github.com/plgd-dev/go-coap/v3/udp"
)

var DefaultDialConfig = DialConfig{
	MaxMessageSize: 64 * 1024,
	Transmission: Transmission{
		NStart:             1,
		AcknowledgeTimeout: time.Second * 2,
		MaxRetransmit:      4,
	},
	Errors: func(err error) {
		fmt.Println(err)
	},
}

// DialConfig carries the session options shared by UDP and DTLS dialers.
type DialConfig struct {
	MaxMessageSize uint32
	Transmission   Transmission
	// Errors receives asynchronous transport errors of the session.
	Errors func(error)
	// LoggerFactory is handed to pion/dtls. Nil keeps the pion default.
	LoggerFactory logging.LoggerFactory
}

// Transmission controls retransmission of confirmable requests. A zero
// NStart keeps the go-coap defaults.
type Transmission struct {
	NStart             uint32
	AcknowledgeTimeout time.Duration
	MaxRetransmit      uint32
}

// PSK holds pre-shared key credentials for coaps.
type PSK struct {
	Identity string
	Key      []byte
}

func (cfg DialConfig) udpOptions() []udp.Option {
	opts := []udp.Option{
		options.WithMaxMessageSize(cfg.MaxMessageSize),
	}
	if cfg.Errors != nil {
		opts = append(opts, options.WithErrors(cfg.Errors))
	}
	if t := cfg.Transmission; t.NStart > 0 {
		opts = append(opts, options.WithTransmission(t.NStart, t.AcknowledgeTimeout, t.MaxRetransmit))
	}
	return opts
}

// DialUDP returns a DialFunc opening plain coap sessions to target.
func DialUDP(target string, cfg DialConfig) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cc, err := udp.Dial(target, cfg.udpOptions()...)
		if err != nil {
			return nil, fmt.Errorf("coap://%v: %w", target, err)
		}
		return cc, nil
	}
}

// DialDTLS returns a DialFunc opening coaps sessions secured by a pre-shared key.
// The handshake is bound to the context passed to the DialFunc.
func DialDTLS(target string, psk PSK, cfg DialConfig) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dtlsCfg := NewPSKConfig(psk, cfg.LoggerFactory)
		dtlsCfg.ConnectContextMaker = func() (context.Context, func()) {
			return context.WithCancel(ctx)
		}
		cc, err := dtls.Dial(target, dtlsCfg, cfg.udpOptions()...)
		if err != nil {
			return nil, fmt.Errorf("coaps://%v: %w", target, err)
		}
		return cc, nil
	}
}

// NewPSKConfig builds the pion/dtls configuration used by both ends of a coaps session.
func NewPSKConfig(psk PSK, loggerFactory logging.LoggerFactory) *piondtls.Config {
	key := append([]byte(nil), psk.Key...)
	return &piondtls.Config{
		PSK: func(hint []byte) ([]byte, error) {
			return key, nil
		},
		PSKIdentityHint: []byte(psk.Identity),
		CipherSuites:    []piondtls.CipherSuiteID{piondtls.TLS_PSK_WITH_AES_128_CCM_8},
		LoggerFactory:   loggerFactory,
	}
}
