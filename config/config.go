// Package config gathers everything a shoetest run needs: where the shoe is,
// how to talk to it and which steps to run.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/units"
	"github.com/pion/logging"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/shoe-iot/shoetest/client"
	"github.com/shoe-iot/shoetest/discovery"
	"github.com/shoe-iot/shoetest/scenario"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrMissingPSK     = Error("dtls requires a pre-shared key")
	ErrInvalidTimeout = Error("timeout must be positive")
	ErrInvalidACK     = Error("acknowledge timeout must be positive")
)

const DTLSPort = 5684

type DTLS struct {
	Enabled  bool
	Identity string
	// Key is the pre-shared key; a "hex:" prefix marks a hex encoded key.
	Key string
}

type Config struct {
	// Address of the shoe. Empty means the shoe is discovered through mDNS.
	Address   string
	DTLS      DTLS
	Discovery discovery.MDNS

	Timeout           time.Duration
	SessionPerRequest bool
	MaxMessageSize    units.Base2Bytes
	Transmission      client.Transmission

	Timing scenario.Timing
	// ScenarioFile replaces the built-in shoe scenario.
	ScenarioFile string
	// Only keeps the steps using one of these methods.
	Only []string

	LogLevel slog.Level
}

func Default() Config {
	return Config{
		Discovery:      discovery.DefaultMDNS,
		Timeout:        client.DefaultConfig.Timeout,
		MaxMessageSize: units.Base2Bytes(client.DefaultDialConfig.MaxMessageSize),
		Transmission:   client.DefaultDialConfig.Transmission,
		Timing:         scenario.DefaultTiming,
		DTLS:           DTLS{Identity: "shoetest"},
		LogLevel:       slog.LevelInfo,
	}
}

func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxMessageSize <= 0 || c.MaxMessageSize > units.Base2Bytes(^uint32(0)) {
		return fmt.Errorf("invalid max message size %v", c.MaxMessageSize)
	}
	if c.Transmission.NStart > 0 && c.Transmission.AcknowledgeTimeout <= 0 {
		return ErrInvalidACK
	}
	if c.Timing.SettleDelay < 0 || c.Timing.CountInterval < 0 {
		return scenario.ErrNegativeDelay
	}
	if c.DTLS.Enabled {
		if _, err := c.pskKey(); err != nil {
			return err
		}
	}
	if _, err := c.methods(); err != nil {
		return err
	}
	return nil
}

// Scheme is coaps for DTLS sessions, coap otherwise.
func (c Config) Scheme() string {
	if c.DTLS.Enabled {
		return "coaps"
	}
	return "coap"
}

func (c Config) Port() int {
	if c.DTLS.Enabled {
		return DTLSPort
	}
	return discovery.DefaultPort
}

// Resolver picks the static address when configured and mDNS otherwise.
func (c Config) Resolver() discovery.Resolver {
	return discovery.Select(c.Address, c.Port(), c.Discovery)
}

func (c Config) pskKey() ([]byte, error) {
	if c.DTLS.Key == "" {
		return nil, ErrMissingPSK
	}
	if h, ok := strings.CutPrefix(c.DTLS.Key, "hex:"); ok {
		key, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("invalid hex pre-shared key: %w", err)
		}
		if len(key) == 0 {
			return nil, ErrMissingPSK
		}
		return key, nil
	}
	return []byte(c.DTLS.Key), nil
}

// PSK returns the DTLS credentials.
func (c Config) PSK() (client.PSK, error) {
	key, err := c.pskKey()
	if err != nil {
		return client.PSK{}, err
	}
	return client.PSK{Identity: c.DTLS.Identity, Key: key}, nil
}

// Dialer builds the session dialer for the resolved target.
func (c Config) Dialer(target string, errors func(error), loggerFactory logging.LoggerFactory) (client.DialFunc, error) {
	cfg := client.DefaultDialConfig
	cfg.MaxMessageSize = uint32(c.MaxMessageSize)
	cfg.Transmission = c.Transmission
	cfg.Errors = errors
	cfg.LoggerFactory = loggerFactory
	if !c.DTLS.Enabled {
		return client.DialUDP(target, cfg), nil
	}
	psk, err := c.PSK()
	if err != nil {
		return nil, err
	}
	return client.DialDTLS(target, psk, cfg), nil
}

func (c Config) ClientOptions() []client.Option {
	return []client.Option{
		client.WithTimeout(c.Timeout),
		client.WithSessionPerRequest(c.SessionPerRequest),
	}
}

func (c Config) methods() ([]codes.Code, error) {
	methods := make([]codes.Code, 0, len(c.Only))
	for _, m := range c.Only {
		code, err := client.ParseMethod(m)
		if err != nil {
			return nil, err
		}
		methods = append(methods, code)
	}
	return methods, nil
}

// Steps loads the scenario file, or the built-in shoe scenario, and applies
// the method selection.
func (c Config) Steps() ([]scenario.Step, error) {
	methods, err := c.methods()
	if err != nil {
		return nil, err
	}
	steps := scenario.Shoe(c.Timing)
	if c.ScenarioFile != "" {
		steps, err = scenario.LoadFile(c.ScenarioFile)
		if err != nil {
			return nil, err
		}
	}
	steps = scenario.Filter(steps, methods...)
	if len(steps) == 0 {
		return nil, scenario.ErrEmptyScenario
	}
	return steps, nil
}

// ParseMaxMessageSize accepts sizes such as "1KiB" or "65536".
func ParseMaxMessageSize(s string) (units.Base2Bytes, error) {
	if n, err := units.ParseBase2Bytes(s); err == nil {
		return n, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return units.Base2Bytes(n), nil
}

// DTLSLoggerFactory maps the run log level onto pion/logging.
func DTLSLoggerFactory(level slog.Level) logging.LoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	switch {
	case level <= slog.LevelDebug:
		f.DefaultLogLevel = logging.LogLevelDebug
	case level <= slog.LevelInfo:
		f.DefaultLogLevel = logging.LogLevelInfo
	case level <= slog.LevelWarn:
		f.DefaultLogLevel = logging.LogLevelWarn
	default:
		f.DefaultLogLevel = logging.LogLevelError
	}
	return f
}
