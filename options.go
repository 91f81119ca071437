package modkit

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// defaultMaxDepth bounds resolution recursion. Real graphs stay far below
// this; hitting it means a runaway recursion the cycle detector could not
// see (for example through handles resolved inside factories).
const defaultMaxDepth = 100

// Option configures a Container at construction time.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	maxDepth int
	deferred bool
}

func defaultOptions() options {
	return options{
		logger:   zap.NewNop(),
		maxDepth: defaultMaxDepth,
	}
}

// WithLogger sets the container's logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxDepth sets the resolution depth limit. Zero disables the check.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		o.maxDepth = n
	}
}

// WithDeferredResolution makes Build skip the dry run, constructing
// instances on first use instead of at bootstrap. Misconfigurations then
// surface at the first resolution that touches them rather than at startup.
func WithDeferredResolution() Option {
	return func(o *options) {
		o.deferred = true
	}
}

// Environment variables read by OptionsFromEnv.
const (
	envResolution = "MODKIT_RESOLUTION" // eager (default) or deferred
	envMaxDepth   = "MODKIT_MAX_DEPTH"  // positive integer, 0 disables
	envLog        = "MODKIT_LOG"        // nop (default), dev, or prod
)

// OptionsFromEnv builds container options from the environment, loading a
// .env file first if one exists in the working directory.
func OptionsFromEnv() ([]Option, error) {
	// A missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	var opts []Option

	switch v := os.Getenv(envResolution); v {
	case "", "eager":
	case "deferred":
		opts = append(opts, WithDeferredResolution())
	default:
		return nil, fmt.Errorf("%s: unknown resolution mode %q", envResolution, v)
	}

	if v := os.Getenv(envMaxDepth); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s: invalid depth %q", envMaxDepth, v)
		}
		opts = append(opts, WithMaxDepth(n))
	}

	switch v := os.Getenv(envLog); v {
	case "", "nop":
	case "dev":
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envLog, err)
		}
		opts = append(opts, WithLogger(logger))
	case "prod":
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envLog, err)
		}
		opts = append(opts, WithLogger(logger))
	default:
		return nil, fmt.Errorf("%s: unknown log mode %q", envLog, v)
	}

	return opts, nil
}
