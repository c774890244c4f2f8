// Command shoetest runs a scripted sequence of CoAP requests against the
// instrumented shoe and prints every response.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	coapNet "github.com/plgd-dev/go-coap/v3/net"
	"github.com/shoe-iot/shoetest/client"
	"github.com/shoe-iot/shoetest/config"
	"github.com/shoe-iot/shoetest/device"
	"github.com/shoe-iot/shoetest/driver"
	"golang.org/x/sync/errgroup"
)

var cli struct {
	Address     string `help:"Shoe address as host[:port]. The shoe is discovered over mDNS when empty." env:"SHOE_ADDRESS"`
	DTLS        bool   `name:"dtls" help:"Use coaps with a pre-shared key."`
	PSK         string `name:"psk" help:"Pre-shared key, prefix with hex: for hex encoded keys." env:"SHOE_PSK"`
	PSKIdentity string `name:"psk-identity" help:"Pre-shared key identity hint." default:"shoetest"`

	Scenario          string        `help:"YAML scenario replacing the built-in shoe check." type:"existingfile"`
	Only              []string      `help:"Run only steps using these methods (GET, PUT, DELETE)."`
	SettleDelay       time.Duration `help:"Pause before every PUT and DELETE." default:"2s"`
	CountInterval     time.Duration `help:"Pause between the two step counter reads." default:"10s"`
	Timeout           time.Duration `help:"Timeout of a single request." default:"5s"`
	SessionPerRequest bool          `help:"Open a new session for every request."`
	MaxMessageSize    string        `help:"Maximum CoAP message size." default:"64KiB"`
	ACKTimeout        time.Duration `name:"ack-timeout" help:"Wait for an acknowledgement before retransmitting a request." default:"2s"`
	MaxRetransmit     uint32        `help:"Retransmissions of an unacknowledged request." default:"4"`

	MDNSService  string        `name:"mdns-service" help:"mDNS service type of the shoe." default:"_coap._udp"`
	MDNSInstance string        `name:"mdns-instance" help:"mDNS instance name of the shoe." default:"shoe_control"`
	MDNSDomain   string        `name:"mdns-domain" help:"mDNS domain." default:"local"`
	MDNSTimeout  time.Duration `name:"mdns-timeout" help:"How long to browse for the shoe." default:"3s"`

	Simulate bool   `help:"Run against an in-process simulated shoe."`
	LogLevel string `help:"Log level." enum:"debug,info,warn,error" default:"info"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("shoetest"),
		kong.Description("Integration test for the instrumented shoe CoAP resources."),
	)
	cfg, err := newConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if cli.Simulate {
		err = simulate(ctx, cfg, logger)
	} else {
		err = run(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func newConfig() (config.Config, error) {
	cfg := config.Default()
	cfg.Address = cli.Address
	cfg.DTLS = config.DTLS{Enabled: cli.DTLS, Identity: cli.PSKIdentity, Key: cli.PSK}
	cfg.ScenarioFile = cli.Scenario
	cfg.Only = cli.Only
	cfg.Timing.SettleDelay = cli.SettleDelay
	cfg.Timing.CountInterval = cli.CountInterval
	cfg.Timeout = cli.Timeout
	cfg.SessionPerRequest = cli.SessionPerRequest
	cfg.Transmission.AcknowledgeTimeout = cli.ACKTimeout
	cfg.Transmission.MaxRetransmit = cli.MaxRetransmit
	cfg.Discovery.Service = cli.MDNSService
	cfg.Discovery.Instance = cli.MDNSInstance
	cfg.Discovery.Domain = cli.MDNSDomain
	cfg.Discovery.Timeout = cli.MDNSTimeout
	size, err := config.ParseMaxMessageSize(cli.MaxMessageSize)
	if err != nil {
		return cfg, err
	}
	cfg.MaxMessageSize = size
	if err := cfg.LogLevel.UnmarshalText([]byte(cli.LogLevel)); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	steps, err := cfg.Steps()
	if err != nil {
		return err
	}
	target, err := cfg.Resolver().Resolve(ctx)
	if err != nil {
		return fmt.Errorf("cannot resolve shoe: %w", err)
	}
	logger.Info("shoe resolved", "target", target)

	dial, err := cfg.Dialer(target, func(err error) {
		if !errors.Is(err, context.Canceled) {
			logger.Debug("coap session error", "error", err)
		}
	}, config.DTLSLoggerFactory(cfg.LogLevel))
	if err != nil {
		return err
	}
	c := client.New(dial, cfg.ClientOptions()...)
	defer func() {
		if errC := c.Close(); errC != nil {
			logger.Warn("cannot close session", "error", errC)
		}
	}()
	if err := c.Open(ctx); err != nil {
		return fmt.Errorf("cannot open session to %v: %w", target, err)
	}

	d := driver.New(c,
		driver.WithLogger(logger),
		driver.WithTarget(cfg.Scheme(), target),
		driver.WithSettleDelay(cfg.Timing.SettleDelay),
	)
	report, err := d.Run(ctx, steps)
	if report != nil {
		if errW := report.WriteSummary(os.Stdout); errW != nil {
			logger.Warn("cannot write summary", "error", errW)
		}
	}
	return err
}

// simulate serves a simulated shoe on a loopback port and runs against it.
func simulate(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shoeCfg := device.DefaultConfig
	shoeCfg.Errors = func(err error) {
		logger.Debug("simulator error", "error", err)
	}
	shoe := device.New(shoeCfg)
	walking := make(chan struct{})
	defer close(walking)
	shoe.Walk(walking, device.DefaultCadence)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	if cfg.DTLS.Enabled {
		psk, err := cfg.PSK()
		if err != nil {
			return err
		}
		l, err := coapNet.NewDTLSListener("udp", "127.0.0.1:0", client.NewPSKConfig(psk, config.DTLSLoggerFactory(cfg.LogLevel)))
		if err != nil {
			return err
		}
		defer l.Close()
		cfg.Address = l.Addr().String()
		g.Go(func() error { return shoe.ServeDTLS(ctx, l) })
	} else {
		l, err := coapNet.NewListenUDP("udp", "127.0.0.1:0")
		if err != nil {
			return err
		}
		defer l.Close()
		cfg.Address = l.LocalAddr().String()
		g.Go(func() error { return shoe.Serve(ctx, l) })
	}
	logger.Info("simulated shoe listening", "address", cfg.Address)
	g.Go(func() error {
		defer cancel()
		return run(ctx, cfg, logger)
	})
	return g.Wait()
}
