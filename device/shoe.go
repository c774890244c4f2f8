// Package device simulates the instrumented shoe: a CoAP server exposing the
// shoelace, LED color, step counter, size and name resources the way the
// device firmware does.
package device

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dsnet/golib/memfile"
	"github.com/plgd-dev/go-coap/v3/dtls"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/mux"
	coapNet "github.com/plgd-dev/go-coap/v3/net"
	"github.com/plgd-dev/go-coap/v3/options"
	"github.com/plgd-dev/go-coap/v3/udp"
	"go.uber.org/atomic"
)

const (
	ShoelacePath = "/shoe/shoelace"
	LEDColorPath = "/shoe/ledcolor"
	StepsPath    = "/shoe/steps"
	SizePath     = "/shoe/size"
	NamePath     = "/shoe/name"

	// EspressifPath is the board's demo resource.
	EspressifPath = "/Espressif"
)

// Buffer sizes of the writable resources.
const (
	shoelaceCapacity  = 6
	ledColorCapacity  = 8
	nameCapacity      = 20
	espressifCapacity = 10
)

// StepsDefault is reported until the counter first moves.
const StepsDefault = "000"

// DefaultCadence is the interval of the firmware step timer.
const DefaultCadence = 10 * time.Second

var DefaultConfig = Config{
	Shoelace:  "Untie",
	LEDColor:  "000000",
	Size:      "20",
	Name:      "No name",
	Espressif: "Hello",
	Errors: func(err error) {
		fmt.Println(err)
	},
}

type Config struct {
	Shoelace  string
	LEDColor  string
	Size      string
	Name      string
	Espressif string
	Errors    func(error)
}

// Shoe keeps the resource values of one simulated device.
type Shoe struct {
	cfg       Config
	resources map[string]Resource
	steps     atomic.Uint32

	mutex  sync.Mutex
	values map[string]*memfile.File
}

func New(cfg Config) *Shoe {
	if cfg.Errors == nil {
		cfg.Errors = func(error) {
			// default no-op
		}
	}
	s := &Shoe{
		cfg:    cfg,
		values: make(map[string]*memfile.File),
	}
	s.resources = map[string]Resource{
		ShoelacePath:  {Path: ShoelacePath, Default: []byte(cfg.Shoelace), Capacity: shoelaceCapacity, Writable: true},
		LEDColorPath:  {Path: LEDColorPath, Default: []byte(cfg.LEDColor), Capacity: ledColorCapacity, Writable: true, Deletable: true},
		SizePath:      {Path: SizePath, Default: []byte(cfg.Size)},
		NamePath:      {Path: NamePath, Default: []byte(cfg.Name), Capacity: nameCapacity, Writable: true, Deletable: true},
		EspressifPath: {Path: EspressifPath, Default: []byte(cfg.Espressif), Capacity: espressifCapacity, Writable: true, Deletable: true},
	}
	for p, r := range s.resources {
		s.values[p] = memfile.New(append([]byte(nil), r.Default...))
	}
	return s
}

// Value returns the current value of the resource at path.
func (s *Shoe) Value(path string) ([]byte, error) {
	if path == StepsPath {
		n := s.steps.Load()
		if n == 0 {
			return []byte(StepsDefault), nil
		}
		return []byte(strconv.FormatUint(uint64(n), 10)), nil
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	f, ok := s.values[path]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownResource, path)
	}
	return append([]byte(nil), f.Bytes()...), nil
}

// write stores payload into the resource at path and returns the reply code:
// 2.01 Created while the resource held its default, 2.04 Changed otherwise.
func (s *Shoe) write(res Resource, payload []byte) (codes.Code, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	f, ok := s.values[res.Path]
	if !ok {
		return codes.NotFound, fmt.Errorf("%w: %v", ErrUnknownResource, res.Path)
	}
	code := codes.Changed
	if res.created(f.Bytes()) {
		code = codes.Created
	}
	if err := f.Truncate(0); err != nil {
		return codes.InternalServerError, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return codes.InternalServerError, err
	}
	if _, err := f.Write(res.store(payload)); err != nil {
		return codes.InternalServerError, err
	}
	return code, nil
}

// Steps is the current value of the step counter.
func (s *Shoe) Steps() uint32 {
	return s.steps.Load()
}

// Step adds n steps to the counter. Like the firmware counter it starts over
// from zero when it reaches the largest uint32.
func (s *Shoe) Step(n uint32) uint32 {
	v := s.steps.Add(n)
	if v == math.MaxUint32 {
		s.steps.Store(0)
		return 0
	}
	return v
}

// Router registers every resource of the shoe.
func (s *Shoe) Router() (*mux.Router, error) {
	m := mux.NewRouter()
	paths := make([]string, 0, len(s.resources)+1)
	for p := range s.resources {
		paths = append(paths, p)
	}
	paths = append(paths, StepsPath)
	sort.Strings(paths)
	for _, p := range paths {
		if err := m.Handle(p, mux.HandlerFunc(s.handle)); err != nil {
			return nil, fmt.Errorf("cannot handle %v: %w", p, err)
		}
	}
	return m, nil
}

func (s *Shoe) handle(w mux.ResponseWriter, r *mux.Message) {
	path, err := r.Path()
	if err != nil {
		s.respond(w, codes.BadRequest, []byte(err.Error()))
		return
	}
	path = "/" + strings.Trim(path, "/")
	switch r.Code() {
	case codes.GET:
		v, err := s.Value(path)
		if err != nil {
			s.respond(w, codes.NotFound, nil)
			return
		}
		s.respond(w, codes.Content, v)
	case codes.PUT:
		res, ok := s.resources[path]
		if !ok || !res.Writable {
			s.respond(w, codes.MethodNotAllowed, nil)
			return
		}
		payload, err := r.ReadBody()
		if err != nil {
			s.respond(w, codes.BadRequest, []byte(err.Error()))
			return
		}
		code, err := s.write(res, payload)
		if err != nil {
			s.cfg.Errors(fmt.Errorf("cannot store %v: %w", path, err))
		}
		s.respond(w, code, nil)
	case codes.DELETE:
		res, ok := s.resources[path]
		if !ok || !res.Deletable {
			s.respond(w, codes.MethodNotAllowed, nil)
			return
		}
		if _, err := s.write(res, nil); err != nil {
			s.cfg.Errors(fmt.Errorf("cannot reset %v: %w", path, err))
			s.respond(w, codes.InternalServerError, nil)
			return
		}
		s.respond(w, codes.Deleted, nil)
	default:
		s.respond(w, codes.MethodNotAllowed, nil)
	}
}

func (s *Shoe) respond(w mux.ResponseWriter, code codes.Code, payload []byte) {
	var body io.ReadSeeker
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	if err := w.SetResponse(code, message.TextPlain, body); err != nil {
		s.cfg.Errors(fmt.Errorf("cannot set response: %w", err))
	}
}

// Serve answers plain coap requests on l until ctx is done.
func (s *Shoe) Serve(ctx context.Context, l *coapNet.UDPConn) error {
	m, err := s.Router()
	if err != nil {
		return err
	}
	srv := udp.NewServer(options.WithMux(m), options.WithErrors(s.cfg.Errors))
	stop := context.AfterFunc(ctx, srv.Stop)
	defer stop()
	return srv.Serve(l)
}

// ServeDTLS answers coaps requests on l until ctx is done.
func (s *Shoe) ServeDTLS(ctx context.Context, l *coapNet.DTLSListener) error {
	m, err := s.Router()
	if err != nil {
		return err
	}
	srv := dtls.NewServer(options.WithMux(m), options.WithErrors(s.cfg.Errors))
	stop := context.AfterFunc(ctx, srv.Stop)
	defer stop()
	return srv.Serve(l)
}
