package driver

import (
	"io"
	"log/slog"
	"time"
)

type Option interface {
	apply(cfg *config)
}

type config struct {
	clock       Clock
	out         io.Writer
	logger      *slog.Logger
	scheme      string
	target      string
	settleDelay time.Duration
}

// ClockOpt replaces the clock used for delays and latency measurements.
type ClockOpt struct {
	clock Clock
}

func (o ClockOpt) apply(cfg *config) {
	cfg.clock = o.clock
}

func WithClock(clock Clock) ClockOpt {
	return ClockOpt{clock: clock}
}

// OutputOpt sets where human-readable results are printed.
type OutputOpt struct {
	out io.Writer
}

func (o OutputOpt) apply(cfg *config) {
	cfg.out = o.out
}

func WithOutput(out io.Writer) OutputOpt {
	return OutputOpt{out: out}
}

type LoggerOpt struct {
	logger *slog.Logger
}

func (o LoggerOpt) apply(cfg *config) {
	cfg.logger = o.logger
}

func WithLogger(logger *slog.Logger) LoggerOpt {
	return LoggerOpt{logger: logger}
}

// TargetOpt names the device in the output and in the report.
type TargetOpt struct {
	scheme string
	target string
}

func (o TargetOpt) apply(cfg *config) {
	cfg.scheme = o.scheme
	cfg.target = o.target
}

func WithTarget(scheme, target string) TargetOpt {
	return TargetOpt{scheme: scheme, target: target}
}

// SettleDelayOpt sets the pause taken by Driver.Put and Driver.Delete.
type SettleDelayOpt struct {
	d time.Duration
}

func (o SettleDelayOpt) apply(cfg *config) {
	cfg.settleDelay = o.d
}

func WithSettleDelay(d time.Duration) SettleDelayOpt {
	return SettleDelayOpt{d: d}
}
