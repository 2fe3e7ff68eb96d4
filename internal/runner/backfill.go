package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"tidemark/internal/calendar"
	"tidemark/internal/domain"
)

// BackfillConfig wires the chunked backfill dispatcher.
type BackfillConfig struct {
	Stream    string
	ChunkSize int // units per chunk
	Workers   int // concurrent chunk subprocesses
	Binary    string // path to the pipeline binary; empty means self
	Watermark domain.WatermarkRepository
	Sequencer *calendar.Sequencer
	Logger    *slog.Logger
}

// Dispatcher fans a large historical range out over subprocesses, one per
// chunk. Chunks are disjoint unit sub-ranges; each worker is a full-mode run
// of the same binary with watermark writes suppressed, so out-of-order chunk
// completion can never produce a non-monotonic watermark. The parent joins
// all chunks and only then advances the shared watermark to the range end.
type Dispatcher struct {
	cfg    BackfillConfig
	logger *slog.Logger
}

func NewDispatcher(cfg BackfillConfig) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "backfill", "stream", cfg.Stream),
	}
}

// chunk is one disjoint sub-range of open units.
type chunk struct {
	first, last domain.Unit
	units       int
}

// Run backfills [lower, upper]. No ordering holds between chunks; within a
// chunk the worker preserves unit order.
func (d *Dispatcher) Run(ctx context.Context, lower, upper domain.Unit) error {
	if lower == 0 || upper == 0 {
		return domain.ErrConfiguration("backfill for %s requires explicit --from and --to", d.cfg.Stream)
	}
	units, err := d.cfg.Sequencer.ListUnits(ctx, lower, upper)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		d.logger.Info("nothing to backfill")
		return nil
	}

	chunks := splitChunks(units, d.cfg.ChunkSize)
	d.logger.Info("backfill started",
		"first", units[0], "last", units[len(units)-1],
		"units", len(units), "chunks", len(chunks), "workers", d.cfg.Workers)

	binary := d.cfg.Binary
	if binary == "" {
		binary, err = os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for _, c := range chunks {
		g.Go(func() error {
			return d.runChunk(gctx, binary, c)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("backfill %s: %w", d.cfg.Stream, err)
	}

	// Join-then-advance: every chunk committed, claim the whole range.
	last := units[len(units)-1]
	if err := d.cfg.Watermark.Advance(ctx, d.cfg.Stream, last); err != nil {
		return err
	}
	d.logger.Info("backfill finished", "watermark", last)
	return nil
}

// runChunk executes one chunk worker as a subprocess of the same binary in
// full mode with watermark writes disabled.
func (d *Dispatcher) runChunk(ctx context.Context, binary string, c chunk) error {
	args := []string{
		"run", "--stream", d.cfg.Stream, "--mode", "full",
		"--from", c.first.String(), "--to", c.last.String(),
		"--no-watermark",
	}
	d.logger.Info("chunk started", "first", c.first, "last", c.last, "units", c.units)

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = os.Environ()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("chunk [%s, %s]: %w: %s", c.first, c.last, err, tail(string(out), 500))
	}
	d.logger.Info("chunk finished", "first", c.first, "last", c.last)
	return nil
}

// splitChunks partitions the ordered unit list into sub-ranges of at most
// size units each.
func splitChunks(units []domain.Unit, size int) []chunk {
	if size < 1 {
		size = 1
	}
	var out []chunk
	for i := 0; i < len(units); i += size {
		end := i + size
		if end > len(units) {
			end = len(units)
		}
		out = append(out, chunk{first: units[i], last: units[end-1], units: end - i})
	}
	return out
}

// tail returns the last n bytes of s, for error excerpts.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
