package scenario

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/shoe-iot/shoetest/client"
)

// Policy decides what the driver does when a step fails.
type Policy int

const (
	// Continue logs the failure and moves on to the next step.
	Continue Policy = iota
	// Abort stops the run and reports the failure.
	Abort
)

func (p Policy) String() string {
	switch p {
	case Continue:
		return "continue"
	case Abort:
		return "abort"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue":
		return Continue, nil
	case "abort":
		return Abort, nil
	}
	return Continue, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Step is one scripted exchange against a resource.
type Step struct {
	Label   string
	Request client.Request
	// Delay is waited before the request is sent.
	Delay     time.Duration
	OnFailure Policy
}

func Get(p string) Step {
	return Step{Request: client.Request{Method: codes.GET, Path: p}}
}

// Put copies payload so later changes by the caller do not leak into the step.
func Put(p string, payload []byte) Step {
	return Step{Request: client.Request{Method: codes.PUT, Path: p, Payload: append([]byte{}, payload...)}}
}

func Delete(p string) Step {
	return Step{Request: client.Request{Method: codes.DELETE, Path: p}}
}

func (s Step) After(d time.Duration) Step {
	s.Delay = d
	return s
}

func (s Step) WithLabel(label string) Step {
	s.Label = label
	return s
}

func (s Step) WithPolicy(p Policy) Step {
	s.OnFailure = p
	return s
}

// Name is the label, or "METHOD resource" when the step has none.
func (s Step) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return fmt.Sprintf("%v %v", s.Request.Method, path.Base(strings.Trim(s.Request.Path, "/")))
}

func (s Step) Validate() error {
	if s.Delay < 0 {
		return fmt.Errorf("%v: %w", s.Name(), ErrNegativeDelay)
	}
	switch s.OnFailure {
	case Continue, Abort:
	default:
		return fmt.Errorf("%v: %w: %v", s.Name(), ErrUnknownPolicy, s.OnFailure)
	}
	return s.Request.Validate()
}

// Filter keeps the steps whose method is one of methods. No methods keeps everything.
func Filter(steps []Step, methods ...codes.Code) []Step {
	if len(methods) == 0 {
		return steps
	}
	keep := make(map[codes.Code]bool, len(methods))
	for _, m := range methods {
		keep[m] = true
	}
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		if keep[s.Request.Method] {
			out = append(out, s)
		}
	}
	return out
}
