// Package config resolves the encoder configuration from the host's JSON
// configuration document.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/jpfielding/dicomjxl.go/pkg/compress/jxl"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
)

// Section is the key of the configuration object inside the host document
const Section = "OrthancJxl"

// legacySection is read when Section is absent
const legacySection = "DicomJxl"

// Config is the resolved plugin configuration
type Config struct {
	Options             jxl.EncodeOptions
	CenterFirstOrdering bool
}

// section mirrors the JSON keys; pointers tell absent from zero
type section struct {
	Mode                *string  `json:"Mode"`
	Effort              *int     `json:"Effort"`
	Distance            *float32 `json:"Distance"`
	CenterFirstOrdering *bool    `json:"CenterFirstOrdering"`
	ProgressiveDC       *int     `json:"ProgressiveDC"`
	ProgressiveAC       *bool    `json:"ProgressiveAC"`
}

// Default is progressive lossless at effort 7 with center-first ordering
func Default() Config {
	return Config{
		Options:             jxl.DefaultOptions(),
		CenterFirstOrdering: true,
	}
}

// Parse reads the OrthancJxl section of a host configuration document,
// falling back to a DicomJxl section when it is absent. A
// missing section yields Default, as does a document that is not valid JSON
// or carries a value of the wrong type. Out of range values are ignored one
// field at a time.
func Parse(doc []byte) Config {
	cfg := Default()
	if len(doc) == 0 {
		return cfg
	}
	var root map[string]json.RawMessage
	if err := json.Unmarshal(doc, &root); err != nil {
		slog.Warn("configuration is not valid JSON, using defaults", slog.Any("error", err))
		return Default()
	}
	key := Section
	raw, ok := root[key]
	if !ok {
		key = legacySection
		if raw, ok = root[key]; !ok {
			return cfg
		}
	}
	var s section
	if err := json.Unmarshal(raw, &s); err != nil {
		slog.Warn("configuration section is malformed, using defaults", slog.String("section", key), slog.Any("error", err))
		return Default()
	}

	if s.Mode != nil {
		if mode, err := jxl.ParseEncodeMode(*s.Mode); err == nil {
			cfg.Options.Mode = mode
		} else {
			slog.Warn("ignoring configuration value", slog.String("key", "Mode"), slog.Any("error", err))
		}
	}
	if s.Effort != nil {
		if *s.Effort >= 1 && *s.Effort <= 10 {
			cfg.Options.Effort = *s.Effort
		} else {
			slog.Warn("ignoring configuration value", slog.String("key", "Effort"), slog.Int("value", *s.Effort))
		}
	}
	if s.Distance != nil {
		if *s.Distance >= 0 {
			cfg.Options.Distance = *s.Distance
		} else {
			slog.Warn("ignoring configuration value", slog.String("key", "Distance"), slog.Any("value", *s.Distance))
		}
	}
	if s.CenterFirstOrdering != nil {
		cfg.CenterFirstOrdering = *s.CenterFirstOrdering
	}
	if s.ProgressiveDC != nil {
		if *s.ProgressiveDC >= 0 && *s.ProgressiveDC <= 2 {
			cfg.Options.ProgressiveDC = *s.ProgressiveDC
		} else {
			slog.Warn("ignoring configuration value", slog.String("key", "ProgressiveDC"), slog.Int("value", *s.ProgressiveDC))
		}
	}
	if s.ProgressiveAC != nil {
		cfg.Options.ProgressiveAC = *s.ProgressiveAC
	}
	return cfg
}

// Load reads and parses a configuration file
func Load(path string) (Config, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("reading configuration: %w", err)
	}
	return Parse(doc), nil
}

// EncodeOptions returns the options for one image. With center-first
// ordering on and no explicit center, the group order starts at the middle.
func (c Config) EncodeOptions(width, height uint32) jxl.EncodeOptions {
	opts := c.Options
	if c.CenterFirstOrdering && opts.CenterX < 0 && opts.CenterY < 0 {
		opts.CenterX = int(width / 2)
		opts.CenterY = int(height / 2)
	}
	return opts
}

// TargetTransferSyntax is the syntax produced by the configured mode
func (c Config) TargetTransferSyntax() transfer.Syntax {
	if c.Options.Mode == jxl.ProgressiveVarDCT {
		return transfer.JPEGXL
	}
	return transfer.JPEGXLLossless
}

// LogValue implements slog.LogValuer
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("mode", c.Options.Mode.String()),
		slog.Int("effort", c.Options.Effort),
		slog.Any("distance", c.Options.Distance),
		slog.Bool("centerFirst", c.CenterFirstOrdering),
		slog.Int("progressiveDC", c.Options.ProgressiveDC),
		slog.Bool("progressiveAC", c.Options.ProgressiveAC),
	)
}
