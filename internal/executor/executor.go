// Package executor runs a batch kernel over [0, n) with a strategy chosen from
// the batch size.
//
// Small batches run as a plain loop. Medium batches run the same loop in
// cache-sized chunks. Large batches are split into one contiguous block per
// worker; each block runs on its own goroutine and walks its range in chunks.
// Kernels write straight into caller-owned buffers at disjoint indices, so
// nothing is merged after the join.
package executor

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Defaults for strategy selection. They depend on the platform and the
// kernel; BenchmarkStrategies re-derives them.
const (
	DefaultSequentialThreshold = 512
	DefaultParallelThreshold   = 16384
	DefaultChunkSize           = 256
)

// Mode forces a strategy regardless of batch size.
type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeSequential Mode = "sequential"
	ModeChunked    Mode = "chunked"
	ModeParallel   Mode = "parallel"
)

// ParseMode maps a configured mode name to a Mode. Unknown names select auto.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeSequential, ModeChunked, ModeParallel:
		return Mode(s)
	case "cpu", "single":
		return ModeSequential
	default:
		return ModeAuto
	}
}

// Kind is one of the three execution strategies.
type Kind int

const (
	Sequential Kind = iota
	CacheChunked
	ChunkedParallel
)

func (k Kind) String() string {
	switch k {
	case Sequential:
		return "sequential"
	case CacheChunked:
		return "cache-chunked"
	case ChunkedParallel:
		return "chunked-parallel"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Strategy is the chosen way to run one batch.
type Strategy struct {
	Kind      Kind
	Workers   int // goroutines used; 1 unless Kind is ChunkedParallel
	ChunkSize int
}

func (s Strategy) String() string {
	if s.Kind == ChunkedParallel {
		return fmt.Sprintf("%s(%d)", s.Kind, s.Workers)
	}
	return s.Kind.String()
}

// Slots is the number of distinct slot indices a kernel may see, one per
// goroutine. Callers size per-worker scratch (fault lists) with it.
func (s Strategy) Slots() int {
	if s.Workers < 1 {
		return 1
	}
	return s.Workers
}

// Config sets the strategy thresholds. Zero fields take the defaults.
type Config struct {
	SequentialThreshold int
	ParallelThreshold   int
	ChunkSize           int
	Workers             int
	Mode                Mode
}

func (c Config) withDefaults() Config {
	if c.SequentialThreshold <= 0 {
		c.SequentialThreshold = DefaultSequentialThreshold
	}
	if c.ParallelThreshold <= 0 {
		c.ParallelThreshold = DefaultParallelThreshold
	}
	if c.ParallelThreshold < c.SequentialThreshold {
		c.ParallelThreshold = c.SequentialThreshold
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Mode == "" {
		c.Mode = ModeAuto
	}
	return c
}

// Kernel processes elements [lo, hi). slot identifies the goroutine running
// it and is in [0, Strategy.Slots()).
type Kernel func(ctx context.Context, slot, lo, hi int) error

// Executor selects and runs strategies. It is immutable and safe for
// concurrent use.
type Executor struct {
	cfg Config
}

// New returns an Executor for cfg.
func New(cfg Config) *Executor {
	return &Executor{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (e *Executor) Config() Config { return e.cfg }

// Select picks the strategy for a batch of n elements. It depends only on n
// and the configuration.
func (e *Executor) Select(n int) Strategy {
	c := e.cfg
	seq := Strategy{Kind: Sequential, Workers: 1, ChunkSize: n}
	chunked := Strategy{Kind: CacheChunked, Workers: 1, ChunkSize: c.ChunkSize}

	switch c.Mode {
	case ModeSequential:
		return seq
	case ModeChunked:
		return chunked
	case ModeParallel:
		return e.parallel(n)
	}

	switch {
	case n < c.SequentialThreshold:
		return seq
	case n < c.ParallelThreshold:
		return chunked
	default:
		return e.parallel(n)
	}
}

// parallel never uses more workers than there are chunks.
func (e *Executor) parallel(n int) Strategy {
	c := e.cfg
	nchunks := (n + c.ChunkSize - 1) / c.ChunkSize
	w := c.Workers
	if nchunks < w {
		w = nchunks
	}
	if w <= 1 {
		return Strategy{Kind: CacheChunked, Workers: 1, ChunkSize: c.ChunkSize}
	}
	return Strategy{Kind: ChunkedParallel, Workers: w, ChunkSize: c.ChunkSize}
}

// Run applies kernel over [0, n) with strategy s. The first kernel error stops
// further chunks from starting and is returned; under ChunkedParallel that is
// the first error observed, not necessarily the lowest index.
func (e *Executor) Run(ctx context.Context, s Strategy, n int, kernel Kernel) error {
	if n <= 0 {
		return nil
	}
	switch s.Kind {
	case Sequential:
		return kernel(ctx, 0, 0, n)
	case CacheChunked:
		return chunks(ctx, 0, 0, n, s.ChunkSize, kernel)
	}

	g, gctx := errgroup.WithContext(ctx)
	block := (n + s.Workers - 1) / s.Workers
	for w := 0; w < s.Workers; w++ {
		lo := w * block
		if lo >= n {
			break
		}
		hi := lo + block
		if hi > n {
			hi = n
		}
		slot := w
		g.Go(func() error {
			return chunks(gctx, slot, lo, hi, s.ChunkSize, kernel)
		})
	}
	return g.Wait()
}

// chunks walks [lo, hi) in steps of size, checking ctx between steps.
func chunks(ctx context.Context, slot, lo, hi, size int, kernel Kernel) error {
	if size <= 0 {
		size = hi - lo
	}
	for start := lo; start < hi; start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + size
		if end > hi {
			end = hi
		}
		if err := kernel(ctx, slot, start, end); err != nil {
			return err
		}
	}
	return nil
}
