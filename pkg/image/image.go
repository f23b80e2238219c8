// Package image loads process images: YAML documents describing the programs,
// the initial processes and the seed values of a tuple space.
//
//	channel: "@2:procs"
//	programs:
//	  worker: |
//	    load 0
//	    tell
//	processes:
//	  - id: "@1:adder"
//	    blocked_on: "@0:c4"
//	    code: |
//	      push @0:c5
//	      push @0:c4
//	      ask
//	      push 2
//	      add
//	      tell
//	values:
//	  - channel: "@0:c4"
//	    value: 3
package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/vm"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultChannel is the process channel used when an image names none.
var DefaultChannel = domain.NewName(2, "procs")

// ErrInvalid wraps every structural problem in an image.
var ErrInvalid = errors.New("invalid image")

type rawImage struct {
	Channel   string            `mapstructure:"channel"`
	SpawnKind *uint8            `mapstructure:"spawn_kind"`
	Programs  map[string]string `mapstructure:"programs"`
	Processes []rawProcess      `mapstructure:"processes"`
	Values    []rawValue        `mapstructure:"values"`
}

type rawProcess struct {
	ID        string `mapstructure:"id"`
	BlockedOn string `mapstructure:"blocked_on"`
	Code      string `mapstructure:"code"`
	Program   string `mapstructure:"program"`
	Locals    []any  `mapstructure:"locals"`
	Budget    int    `mapstructure:"budget"`
}

type rawValue struct {
	Channel string `mapstructure:"channel"`
	Value   any    `mapstructure:"value"`
}

// Seed is a value told onto a channel before the processes are parked.
type Seed struct {
	Channel domain.Name
	Value   domain.Value
}

// Image is a decoded, assembled process image.
type Image struct {
	Channel   domain.Name
	Library   *vm.Library
	Processes []*domain.Process
	Values    []Seed
}

// Option configures loading.
type Option func(*loader)

type loader struct {
	budget int
}

// WithBudget sets the step budget of every process that does not set its own.
func WithBudget(n int) Option {
	return func(l *loader) {
		l.budget = n
	}
}

// LoadFile reads an image from path.
func LoadFile(path string, opts ...Option) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return Load(f, opts...)
}

// Load decodes and assembles an image.
func Load(r io.Reader, opts ...Option) (*Image, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var raw rawImage
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &raw,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return l.build(&raw)
}

func (l *loader) build(raw *rawImage) (*Image, error) {
	img := &Image{Channel: DefaultChannel}
	if raw.Channel != "" {
		ch, err := domain.ParseName(raw.Channel)
		if err != nil {
			return nil, fmt.Errorf("%w: channel: %v", ErrInvalid, err)
		}
		img.Channel = ch
	}

	asm := vm.NewAssembler()
	for _, name := range sortedKeys(raw.Programs) {
		if err := asm.Add(name, raw.Programs[name]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	entries := make([]string, len(raw.Processes))
	seen := make(map[domain.Name]bool, len(raw.Processes))
	for i, p := range raw.Processes {
		id, err := domain.ParseName(p.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: process %d: id: %v", ErrInvalid, i, err)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: process %s defined twice", ErrInvalid, id)
		}
		seen[id] = true

		switch {
		case p.Code != "" && p.Program != "":
			return nil, fmt.Errorf("%w: process %s sets both code and program", ErrInvalid, id)
		case p.Code != "":
			entries[i] = id.String()
			if err := asm.Add(entries[i], p.Code); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
			}
		case p.Program != "":
			if _, ok := raw.Programs[p.Program]; !ok {
				return nil, fmt.Errorf("%w: process %s runs unknown program %q", ErrInvalid, id, p.Program)
			}
			entries[i] = p.Program
		default:
			return nil, fmt.Errorf("%w: process %s has no code", ErrInvalid, id)
		}
	}

	lib, err := asm.Link()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	img.Library = lib

	for i, p := range raw.Processes {
		id := domain.MustName(p.ID)
		opts, err := l.options(raw, &p)
		if err != nil {
			return nil, fmt.Errorf("%w: process %s: %v", ErrInvalid, id, err)
		}
		m, err := lib.NewVM(entries[i], opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: process %s: %v", ErrInvalid, id, err)
		}
		img.Processes = append(img.Processes, domain.NewProcess(id, m))
	}

	for i, v := range raw.Values {
		ch, err := domain.ParseName(v.Channel)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: channel: %v", ErrInvalid, i, err)
		}
		val, err := ToValue(v.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %v", ErrInvalid, i, err)
		}
		img.Values = append(img.Values, Seed{Channel: ch, Value: val})
	}
	return img, nil
}

func (l *loader) options(raw *rawImage, p *rawProcess) ([]vm.Option, error) {
	var opts []vm.Option
	if p.BlockedOn != "" {
		wait, err := domain.ParseName(p.BlockedOn)
		if err != nil {
			return nil, fmt.Errorf("blocked_on: %w", err)
		}
		opts = append(opts, vm.WithWait(wait))
	}
	if len(p.Locals) > 0 {
		locals := make([]domain.Value, len(p.Locals))
		for i, raw := range p.Locals {
			v, err := ToValue(raw)
			if err != nil {
				return nil, fmt.Errorf("local %d: %w", i, err)
			}
			locals[i] = v
		}
		opts = append(opts, vm.WithLocals(locals...))
	}
	switch {
	case p.Budget > 0:
		opts = append(opts, vm.WithBudget(p.Budget))
	case l.budget > 0:
		opts = append(opts, vm.WithBudget(l.budget))
	}
	if raw.SpawnKind != nil {
		opts = append(opts, vm.WithSpawnKind(*raw.SpawnKind))
	}
	return opts, nil
}

// Deposit tells the seed values, then parks every process as one group on
// the image channel.
func (img *Image) Deposit(ctx context.Context, space domain.Space) error {
	for _, s := range img.Values {
		if err := space.Tell(ctx, s.Channel.NS, s.Channel.String(), s.Value); err != nil {
			return fmt.Errorf("deposit %s: %w", s.Channel, err)
		}
	}
	if len(img.Processes) == 0 {
		return nil
	}
	group := make(domain.Par, len(img.Processes))
	copy(group, img.Processes)
	if err := space.Tell(ctx, img.Channel.NS, img.Channel.String(), group); err != nil {
		return fmt.Errorf("deposit %s: %w", img.Channel, err)
	}
	return nil
}
