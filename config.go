package mapbatch

import (
	"io"
	"log/slog"

	"github.com/ygrebnov/errorc"

	"github.com/streamkit/mapbatch/metrics"
	"github.com/streamkit/mapbatch/tensor"
)

// config holds Dataset configuration. All values are immutable after
// NewDataset returns.
type config struct {
	// BatchSize is the leading dimension of emitted batches.
	BatchSize int64

	// NumParallelCalls bounds the number of simultaneously in-flight
	// user-function calls.
	NumParallelCalls int64

	// NumParallelBatches, when set, derives NumParallelCalls as
	// NumParallelBatches * BatchSize. Mutually exclusive with
	// NumParallelCalls.
	NumParallelBatches int64

	// DropRemainder discards a trailing batch smaller than BatchSize.
	DropRemainder bool

	// OutputTypes and OutputShapes describe the user function's output
	// components. Optional; when set, component dtypes are validated at
	// batch allocation time.
	OutputTypes  []tensor.DType
	OutputShapes []tensor.Shape

	// Logger receives structured lifecycle events. Defaults to a discard
	// logger.
	Logger *slog.Logger

	// Metrics provides iterator instruments. Defaults to Noop.
	Metrics metrics.Provider

	// Allocator serves batch tensor allocations. Defaults to the host
	// allocator.
	Allocator tensor.Allocator
}

// defaultConfig centralizes default values for config.
func defaultConfig() config {
	return config{
		NumParallelCalls: 0, // must be set via an option
		DropRemainder:    false,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:          metrics.NewNoopProvider(),
		Allocator:        tensor.HostAllocator(),
	}
}

// validateConfig resolves the parallelism form and checks invariants.
// BatchSize is filled in by NewDataset before validation.
func validateConfig(cfg *config) error {
	if cfg.BatchSize <= 0 {
		return errorc.With(ErrInvalidArgument,
			errorc.String("", "batch_size must be greater than zero"))
	}
	if cfg.NumParallelCalls != 0 && cfg.NumParallelBatches != 0 {
		return errorc.With(ErrInvalidConfig,
			errorc.String("", "WithNumParallelCalls and WithNumParallelBatches are mutually exclusive"))
	}
	if cfg.NumParallelBatches != 0 {
		cfg.NumParallelCalls = cfg.NumParallelBatches * cfg.BatchSize
	}
	if cfg.NumParallelCalls <= 0 {
		return errorc.With(ErrInvalidArgument,
			errorc.String("", "num_parallel_calls must be greater than zero"))
	}
	if len(cfg.OutputTypes) != len(cfg.OutputShapes) {
		return errorc.With(ErrInvalidConfig,
			errorc.String("", "output types and shapes must have equal length"))
	}
	return nil
}

// Option configures a Dataset. Use NewDataset(input, fn, batchSize,
// opts...) to construct one.
type Option func(*config) error

// WithNumParallelCalls bounds the number of simultaneously in-flight
// user-function calls (must be > 0).
func WithNumParallelCalls(p int64) Option {
	return func(cfg *config) error {
		if p <= 0 {
			return errorc.With(ErrInvalidArgument,
				errorc.String("", "num_parallel_calls must be greater than zero"))
		}
		cfg.NumParallelCalls = p
		return nil
	}
}

// WithNumParallelBatches sets parallelism as whole batches: the in-flight
// call bound becomes n * batchSize (must be > 0).
func WithNumParallelBatches(n int64) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errorc.With(ErrInvalidArgument,
				errorc.String("", "num_parallel_batches must be greater than zero"))
		}
		cfg.NumParallelBatches = n
		return nil
	}
}

// WithDropRemainder discards a trailing batch smaller than the batch size
// instead of emitting it.
func WithDropRemainder() Option {
	return func(cfg *config) error { cfg.DropRemainder = true; return nil }
}

// WithOutputSpec declares the user function's output component dtypes and
// shapes. Shape dimensions may be tensor.UnknownDim.
func WithOutputSpec(types []tensor.DType, shapes []tensor.Shape) Option {
	return func(cfg *config) error {
		cfg.OutputTypes = types
		cfg.OutputShapes = shapes
		return nil
	}
}

// WithLogger routes iterator lifecycle events to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) error {
		if logger == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "nil logger"))
		}
		cfg.Logger = logger
		return nil
	}
}

// WithMetrics records iterator instruments through provider.
func WithMetrics(provider metrics.Provider) Option {
	return func(cfg *config) error {
		if provider == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "nil metrics provider"))
		}
		cfg.Metrics = provider
		return nil
	}
}

// WithAllocator serves batch tensor allocations from allocator.
func WithAllocator(allocator tensor.Allocator) Option {
	return func(cfg *config) error {
		if allocator == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "nil allocator"))
		}
		cfg.Allocator = allocator
		return nil
	}
}
