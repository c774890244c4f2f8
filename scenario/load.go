package scenario

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shoe-iot/shoetest/client"
	"gopkg.in/yaml.v3"
)

type fileStep struct {
	Label     string        `yaml:"label"`
	Method    string        `yaml:"method"`
	Path      string        `yaml:"path"`
	Payload   *string       `yaml:"payload"`
	Delay     time.Duration `yaml:"delay"`
	OnFailure string        `yaml:"on_failure"`
}

type file struct {
	Steps []fileStep `yaml:"steps"`
}

// Load decodes a YAML scenario:
//
//	steps:
//	  - method: GET
//	    path: shoe/shoelace
//	  - method: PUT
//	    path: shoe/shoelace
//	    payload: tie
//	    delay: 2s
//	    on_failure: abort
func Load(r io.Reader) ([]Step, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyScenario
		}
		return nil, fmt.Errorf("cannot decode scenario: %w", err)
	}
	if len(f.Steps) == 0 {
		return nil, ErrEmptyScenario
	}
	steps := make([]Step, 0, len(f.Steps))
	for i, fs := range f.Steps {
		s, err := fs.toStep()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func LoadFile(name string) ([]Step, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	steps, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", name, err)
	}
	return steps, nil
}

func (fs fileStep) toStep() (Step, error) {
	method, err := client.ParseMethod(fs.Method)
	if err != nil {
		return Step{}, err
	}
	policy, err := ParsePolicy(fs.OnFailure)
	if err != nil {
		return Step{}, err
	}
	s := Step{
		Label:     fs.Label,
		Request:   client.Request{Method: method, Path: fs.Path},
		Delay:     fs.Delay,
		OnFailure: policy,
	}
	if fs.Payload != nil {
		s.Request.Payload = []byte(*fs.Payload)
	}
	if err := s.Validate(); err != nil {
		return Step{}, err
	}
	return s, nil
}
