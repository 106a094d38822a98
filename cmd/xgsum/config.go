package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jacktea/xgsum/pkg/digest"
	"github.com/jacktea/xgsum/pkg/hasher"
	"github.com/jacktea/xgsum/pkg/report"
)

type runConfig struct {
	BufferSize int           `validate:"min=1"`
	Algorithm  string        `validate:"required"`
	ETAAfter   time.Duration `validate:"gt=0"`
	Jobs       int           `validate:"min=0"`
	Output     string        `validate:"oneof=text json yaml"`
	Template   string        `validate:"required"`
	Manifest   string
	LogLevel   string `validate:"oneof=debug info warn error"`
}

var validate = validator.New()

func defaultRunConfig() runConfig {
	return runConfig{
		BufferSize: hasher.DefaultChunkSize,
		Algorithm:  string(digest.MD5),
		ETAAfter:   hasher.DefaultThreshold,
		Output:     string(report.FormatText),
		Template:   report.DefaultTemplate,
		LogLevel:   "info",
	}
}

func configFrom(v *viper.Viper) (runConfig, error) {
	cfg := runConfig{
		BufferSize: v.GetInt("buffer_size"),
		Algorithm:  v.GetString("algorithm"),
		ETAAfter:   v.GetDuration("eta_after"),
		Jobs:       v.GetInt("jobs"),
		Output:     strings.ToLower(v.GetString("output")),
		Template:   v.GetString("template"),
		Manifest:   v.GetString("manifest"),
		LogLevel:   strings.ToLower(v.GetString("log_level")),
	}
	if err := cfg.validate(); err != nil {
		return runConfig{}, err
	}
	return cfg, nil
}

func (c runConfig) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := digest.ParseAlgorithm(c.Algorithm); err != nil {
		return fmt.Errorf("config: %w (supported: %s)", err, strings.Join(digest.Algorithms(), ", "))
	}
	return nil
}

func (c runConfig) level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
