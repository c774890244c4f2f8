package driver

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/shoe-iot/shoetest/client"
	"github.com/shoe-iot/shoetest/scenario"
)

// Client performs one request/response exchange. *client.Client implements it.
type Client interface {
	Do(ctx context.Context, req client.Request) (client.Response, error)
}

// Driver runs steps one after another against a single device and prints
// every outcome.
type Driver struct {
	client Client
	cfg    config
}

func New(c Client, opts ...Option) *Driver {
	cfg := config{
		clock:       RealClock{},
		out:         os.Stdout,
		logger:      slog.Default(),
		scheme:      "coap",
		settleDelay: scenario.DefaultTiming.SettleDelay,
	}
	for _, o := range opts {
		o.apply(&cfg)
	}
	return &Driver{
		client: c,
		cfg:    cfg,
	}
}

// Run executes steps in order. A failing step is printed and the run goes on,
// unless the step asks to abort; then Run returns the report so far together
// with the step error. A done context stops the run as well.
func (d *Driver) Run(ctx context.Context, steps []scenario.Step) (*Report, error) {
	for i, s := range steps {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("invalid step %d: %w", i+1, err)
		}
	}
	report := newReport(d.cfg.scheme, d.cfg.target, d.cfg.clock.Now())
	d.cfg.logger.Info("starting run", "run", report.ID, "target", report.Target, "steps", len(steps))
	for i, s := range steps {
		o, err := d.Step(ctx, s)
		report.add(o)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			report.finish(d.cfg.clock.Now(), true)
			return report, ctx.Err()
		}
		if s.OnFailure == scenario.Abort {
			d.cfg.logger.Error("aborting run", "run", report.ID, "step", i+1, "name", s.Name(), "error", err)
			report.finish(d.cfg.clock.Now(), true)
			return report, fmt.Errorf("step %d (%v): %w", i+1, s.Name(), err)
		}
		d.cfg.logger.Debug("step failed, continuing", "step", i+1, "name", s.Name(), "error", err)
	}
	report.finish(d.cfg.clock.Now(), false)
	return report, nil
}

// Step waits the step delay, sends its request and prints the outcome.
// The returned error is the failure of the exchange, if any.
func (d *Driver) Step(ctx context.Context, s scenario.Step) (Outcome, error) {
	d.printf("*** %v ***\n", s.Name())
	o := Outcome{Step: s}
	if err := d.cfg.clock.Sleep(ctx, s.Delay); err != nil {
		o.Err = err
		d.printFailure(o)
		return o, err
	}
	d.cfg.logger.Debug("sending request", "uri", s.Request.URI(d.cfg.scheme, d.cfg.target), "payload", len(s.Request.Payload))
	o.Start = d.cfg.clock.Now()
	resp, err := d.client.Do(ctx, s.Request)
	o.Latency = d.cfg.clock.Now().Sub(o.Start)
	if err != nil {
		o.Err = err
		d.printFailure(o)
		return o, err
	}
	o.Response = resp
	d.printf("Result: %v\n%q\n", client.FormatCode(resp.Code), resp.Payload)
	return o, nil
}

// Get reads a resource.
func (d *Driver) Get(ctx context.Context, path string) (Outcome, error) {
	return d.Step(ctx, scenario.Get(path))
}

// Put waits the settle delay, then writes payload to the resource.
func (d *Driver) Put(ctx context.Context, path string, payload []byte) (Outcome, error) {
	return d.Step(ctx, scenario.Put(path, payload).After(d.cfg.settleDelay))
}

// Delete waits the settle delay, then deletes the resource.
func (d *Driver) Delete(ctx context.Context, path string) (Outcome, error) {
	return d.Step(ctx, scenario.Delete(path).After(d.cfg.settleDelay))
}

func (d *Driver) printFailure(o Outcome) {
	verb := "fetch"
	switch o.Step.Request.Method {
	case codes.PUT:
		verb = "update"
	case codes.DELETE:
		verb = "delete"
	}
	d.printf("Failed to %v resource:\n%v\n", verb, o.Err)
}

func (d *Driver) printf(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(d.cfg.out, format, args...); err != nil {
		d.cfg.logger.Warn("cannot write output", "error", err)
	}
}
