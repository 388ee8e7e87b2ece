package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Package sources contains pluggable coupon source configs (YAML/JSON) and fetchers.

type Source struct {
	ID             string         `json:"id" yaml:"id" validate:"required"`
	Name           string         `json:"name" yaml:"name" validate:"required"`
	Type           string         `json:"type" yaml:"type" validate:"required,oneof=coupondunia grabon cashkaro"`
	BaseURL        string         `json:"base_url" yaml:"base_url" validate:"required,url"`
	RequestDelayMs int            `json:"request_delay_ms" yaml:"request_delay_ms" validate:"gte=0"`
	MaxOffers      int            `json:"max_offers" yaml:"max_offers" validate:"gte=0"`
	Disabled       bool           `json:"disabled" yaml:"disabled"`
	Config         map[string]any `json:"config" yaml:"config"`
}

type registry struct {
	Sources []Source `json:"sources" yaml:"sources"`
}

var (
	regMu                 sync.RWMutex
	currentReg            registry
	sourcesIdx            map[string]Source
	defaultRequestDelayMs = 2000
	validate              = validator.New()
)

// Sources returns a copy of the currently loaded, enabled sources.
func Sources() []Source {
	regMu.RLock()
	defer regMu.RUnlock()

	out := make([]Source, 0, len(currentReg.Sources))
	for _, s := range currentReg.Sources {
		if !s.Disabled {
			out = append(out, s)
		}
	}
	return out
}

// SourceByID returns the source entry for the given id, if loaded.
func SourceByID(id string) (Source, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Source{}, false
	}

	regMu.RLock()
	defer regMu.RUnlock()

	if sourcesIdx == nil {
		return Source{}, false
	}

	s, ok := sourcesIdx[id]
	return s, ok
}

// LoadSources loads the source registry from file.
func LoadSources(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("sources file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open sources file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read sources file: %w", err)
	}

	reg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return err
	}

	if len(reg.Sources) == 0 {
		return errors.New("sources file contains no sources entries")
	}

	idx := make(map[string]Source, len(reg.Sources))
	for i := range reg.Sources {
		s := sanitizeSource(reg.Sources[i])
		if err := validateSource(s); err != nil {
			return fmt.Errorf("source[%d]: %w", i, err)
		}
		if _, exists := idx[s.ID]; exists {
			return fmt.Errorf("duplicate source id %q", s.ID)
		}
		reg.Sources[i] = s
		idx[s.ID] = s
	}

	regMu.Lock()
	currentReg = reg
	sourcesIdx = idx
	regMu.Unlock()

	return nil
}

func parseRegistry(data []byte, ext string) (registry, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registry{}, errors.New("sources file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registry, error) {
	var reg registry
	if err := fn(data, &reg); err != nil {
		return registry{}, fmt.Errorf("decode %s sources: %w", name, err)
	}
	return reg, nil
}

func sanitizeSource(s Source) Source {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")

	if s.Config == nil {
		s.Config = map[string]any{}
	}
	return s
}

func validateSource(s Source) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("source %q: %w", s.ID, err)
	}
	return nil
}

// RequestDelay returns the inter-store politeness delay for the source.
func (s Source) RequestDelay() time.Duration {
	if s.RequestDelayMs <= 0 {
		return time.Duration(defaultRequestDelayMs) * time.Millisecond
	}
	return time.Duration(s.RequestDelayMs) * time.Millisecond
}

// OfferLimit returns the per-store card cap, falling back to def when unset.
func (s Source) OfferLimit(def int) int {
	if s.MaxOffers > 0 {
		return s.MaxOffers
	}
	return def
}
