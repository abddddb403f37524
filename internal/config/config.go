// Package config loads detent configuration files: engine settings, sheet
// declarations and simulation scenarios.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/detent/internal/resolver"
	"github.com/aretw0/detent/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultMaxHeight is used by sheets that don't declare one.
const DefaultMaxHeight = 800

// Config is the decoded configuration file.
type Config struct {
	LogLevel string               `mapstructure:"log_level"`
	Platform Platform             `mapstructure:"platform"`
	Redis    *Redis               `mapstructure:"redis"`
	HTTP     HTTP                 `mapstructure:"http"`
	Sheets   []domain.SheetConfig `mapstructure:"-"`
	Scenario []Step               `mapstructure:"scenario"`
}

// Platform tunes the simulated platform.
type Platform struct {
	Duration time.Duration `mapstructure:"duration"`
	Frames   int           `mapstructure:"frames"`
}

// Redis enables the redis snapshot store.
type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// HTTP configures the bridge server.
type HTTP struct {
	Addr        string `mapstructure:"addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Step is one scripted action of a scenario.
type Step struct {
	Op       string        `mapstructure:"op"`
	Sheet    string        `mapstructure:"sheet"`
	Index    int           `mapstructure:"index"`
	Animated *bool         `mapstructure:"animated"`
	Wait     time.Duration `mapstructure:"wait"`

	// drag
	Offsets []float64 `mapstructure:"offsets"`
	Release float64   `mapstructure:"release"`

	// layout
	ContentHeight *float64 `mapstructure:"content_height"`
	FooterHeight  *float64 `mapstructure:"footer_height"`
	MaxHeight     *float64 `mapstructure:"max_height"`
	Renormalize   bool     `mapstructure:"renormalize"`

	// fail_next
	Reason string `mapstructure:"reason"`

	// ExpectError makes the step pass only if its error contains this text.
	ExpectError string `mapstructure:"expect_error"`
}

// IsAnimated defaults to true.
func (s Step) IsAnimated() bool {
	return s.Animated == nil || *s.Animated
}

// Ops understood by the scenario runner.
const (
	OpPresent         = "present"
	OpDismiss         = "dismiss"
	OpResize          = "resize"
	OpDismissChildren = "dismiss_children"
	OpDismissAll      = "dismiss_all"
	OpDrag            = "drag"
	OpLayout          = "layout"
	OpFailNext        = "fail_next"
	OpUnmount         = "unmount"
	OpWait            = "wait"
)

type file struct {
	LogLevel string           `mapstructure:"log_level"`
	Platform Platform         `mapstructure:"platform"`
	Redis    *Redis           `mapstructure:"redis"`
	HTTP     HTTP             `mapstructure:"http"`
	Sheets   []map[string]any `mapstructure:"sheets"`
	Scenario []Step           `mapstructure:"scenario"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Platform: Platform{Duration: 250 * time.Millisecond, Frames: 10},
		HTTP:     HTTP{Addr: ":8080"},
	}
}

// Load reads a YAML or JSON configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var raw map[string]any
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return FromMap(raw)
}

// FromMap decodes an already parsed document, applying defaults.
func FromMap(raw map[string]any) (*Config, error) {
	cfg := Default()
	f := file{
		LogLevel: cfg.LogLevel,
		Platform: cfg.Platform,
		HTTP:     cfg.HTTP,
	}
	if err := decode(raw, &f); err != nil {
		return nil, err
	}

	cfg.LogLevel = f.LogLevel
	cfg.Platform = f.Platform
	cfg.Redis = f.Redis
	cfg.HTTP = f.HTTP
	cfg.Scenario = f.Scenario

	for i, m := range f.Sheets {
		sheet, err := DecodeSheet(m)
		if err != nil {
			return nil, fmt.Errorf("sheet %d: %w", i, err)
		}
		cfg.Sheets = append(cfg.Sheets, sheet)
	}
	return cfg, nil
}

// DecodeSheet maps a loosely typed sheet declaration onto domain.NewSheetConfig defaults.
func DecodeSheet(m map[string]any) (domain.SheetConfig, error) {
	sheet := domain.NewSheetConfig(DefaultMaxHeight)
	if err := decode(m, &sheet); err != nil {
		return domain.SheetConfig{}, err
	}
	return sheet, nil
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			detentHook,
		),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

var detentType = reflect.TypeOf(domain.DetentSpec{})

// detentHook accepts "50%", "auto", "large" or a number wherever a DetentSpec is expected.
// Explicit {kind, value, name} maps decode as usual.
func detentHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != detentType || from.Kind() == reflect.Map {
		return data, nil
	}
	return resolver.Parse(data)
}

// Validate checks that every sheet resolves and every scenario step is runnable.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	names := make(map[string]bool)
	for i, s := range c.Sheets {
		label := s.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if s.MaxHeight <= 0 {
			errs = append(errs, fmt.Errorf("sheet %s: max_height must be positive", label))
		}
		res, err := resolver.Resolve(s.Detents, resolver.Bounds{MaxHeight: s.MaxHeight, MediumHeight: s.MediumHeight}, resolver.Measurements{})
		if err != nil {
			errs = append(errs, fmt.Errorf("sheet %s: %w", label, err))
		} else if idx, ok := s.PresentOnMount(); ok && !res.Detents.Valid(idx) {
			errs = append(errs, fmt.Errorf("sheet %s: initial_index %d: %w", label, idx, domain.ErrIndexOutOfRange))
		}
		if s.Name == "" {
			continue
		}
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("sheet %s: %w", label, domain.ErrDuplicateName))
		}
		names[s.Name] = true
	}

	for i, step := range c.Scenario {
		switch step.Op {
		case OpDismissAll, OpFailNext, OpWait:
		case OpPresent, OpDismiss, OpResize, OpDismissChildren, OpDrag, OpLayout, OpUnmount:
			if !names[step.Sheet] {
				errs = append(errs, fmt.Errorf("step %d (%s): unknown sheet %q", i, step.Op, step.Sheet))
			}
		default:
			errs = append(errs, fmt.Errorf("step %d: unknown op %q", i, step.Op))
		}
	}

	return errors.Join(errs...)
}
