// Command shoesim serves a simulated instrumented shoe over coap or coaps,
// optionally announcing it over mDNS so shoetest can discover it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	coapNet "github.com/plgd-dev/go-coap/v3/net"
	"github.com/shoe-iot/shoetest/client"
	"github.com/shoe-iot/shoetest/config"
	"github.com/shoe-iot/shoetest/device"
	"github.com/shoe-iot/shoetest/discovery"
	"golang.org/x/sync/errgroup"
)

var cli struct {
	Listen      string        `help:"Address to serve on." default:"0.0.0.0:5683"`
	DTLS        bool          `name:"dtls" help:"Serve coaps with a pre-shared key."`
	PSK         string        `name:"psk" help:"Pre-shared key, prefix with hex: for hex encoded keys." env:"SHOE_PSK"`
	PSKIdentity string        `name:"psk-identity" help:"Pre-shared key identity hint." default:"shoesim"`
	Cadence     time.Duration `help:"Add a step to the counter every interval, 0 disables walking." default:"10s"`

	Shoelace  string `help:"Initial and default shoelace state." default:"Untie"`
	LEDColor  string `name:"led-color" help:"Initial and default LED color." default:"000000"`
	Size      string `help:"Shoe size." default:"20"`
	Name      string `help:"Initial and default shoe name." default:"No name"`
	Espressif string `help:"Initial and default value of the demo resource." default:"Hello"`

	Advertise    bool   `help:"Announce the shoe over mDNS."`
	MDNSInstance string `name:"mdns-instance" default:"shoe_control"`
	MDNSService  string `name:"mdns-service" default:"_coap._udp"`
	MDNSDomain   string `name:"mdns-domain" default:"local"`

	LogLevel string `help:"Log level." enum:"debug,info,warn,error" default:"info"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("shoesim"),
		kong.Description("Simulated instrumented shoe."),
	)
	var level slog.Level
	if err := level.UnmarshalText([]byte(cli.LogLevel)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := serve(ctx, level, logger); err != nil {
		logger.Error("simulator failed", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, level slog.Level, logger *slog.Logger) error {
	shoe := device.New(device.Config{
		Shoelace:  cli.Shoelace,
		LEDColor:  cli.LEDColor,
		Size:      cli.Size,
		Name:      cli.Name,
		Espressif: cli.Espressif,
		Errors: func(err error) {
			logger.Debug("coap error", "error", err)
		},
	})
	shoe.Walk(ctx.Done(), cli.Cadence)

	g, ctx := errgroup.WithContext(ctx)
	var addr net.Addr
	if cli.DTLS {
		cfg := config.Default()
		cfg.DTLS = config.DTLS{Enabled: true, Identity: cli.PSKIdentity, Key: cli.PSK}
		psk, err := cfg.PSK()
		if err != nil {
			return err
		}
		l, err := coapNet.NewDTLSListener("udp", cli.Listen, client.NewPSKConfig(psk, config.DTLSLoggerFactory(level)))
		if err != nil {
			return err
		}
		defer l.Close()
		addr = l.Addr()
		g.Go(func() error { return shoe.ServeDTLS(ctx, l) })
	} else {
		l, err := coapNet.NewListenUDP("udp", cli.Listen)
		if err != nil {
			return err
		}
		defer l.Close()
		addr = l.LocalAddr()
		g.Go(func() error { return shoe.Serve(ctx, l) })
	}
	logger.Info("serving simulated shoe", "address", addr.String(), "dtls", cli.DTLS)

	if cli.Advertise {
		a, err := advertise(addr)
		if err != nil {
			return err
		}
		defer func() {
			if errS := a.Shutdown(); errS != nil {
				logger.Warn("cannot stop mdns advertisement", "error", errS)
			}
		}()
		logger.Info("advertising over mdns", "instance", cli.MDNSInstance, "service", cli.MDNSService)
	}
	return g.Wait()
}

func advertise(addr net.Addr) (*discovery.Advertiser, error) {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil && !ip.IsUnspecified() {
		ips = append(ips, ip)
	}
	m := discovery.MDNS{
		Service:  cli.MDNSService,
		Instance: cli.MDNSInstance,
		Domain:   cli.MDNSDomain,
	}
	return discovery.Advertise(m, "", port, ips, "rt=shoe")
}
