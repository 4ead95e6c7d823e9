// Package orchestrator chunks the stop set and runs the range query driver
// across a bounded-concurrency worker pool, funneling every chunk's
// results into the transfer patterns aggregator. This is the only
// concurrent stage of the pipeline.
package orchestrator

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/antigravity/raptorprep/config"
	"github.com/antigravity/raptorprep/raptorindex"
	"github.com/antigravity/raptorprep/rangequery"
	"github.com/antigravity/raptorprep/transferpatterns"
	"github.com/antigravity/raptorprep/types"
)

// ProgressHandle is returned by ProgressSink.Add and tracks one run's
// progress. Its shape matches indicatif::ProgressBar's add/inc/
// finish_with_message trio from the upstream pipeline this orchestrator is
// modeled on.
type ProgressHandle interface {
	Inc(n int)
	FinishWithMessage(msg string)
}

// ProgressSink is an optional collaborator; progress rendering itself is
// out of the core's scope.
type ProgressSink interface {
	Add(total int) ProgressHandle
}

// Logger is the minimal shape the orchestrator needs to report a
// recoverable query error. *slog.Logger satisfies this directly.
type Logger interface {
	Warn(msg string, args ...any)
}

// Run partitions idx.Stops into chunks of cfg.ChunkSize, runs a bounded
// range query per stop across a worker pool sized to available hardware
// threads, and inserts every chunk's successful results into agg. A
// per-stop query failure is logged and skipped; a failure acquiring the
// aggregator's mutex or inserting a chunk's results is fatal and aborts the
// remaining chunks once in-flight work finishes (per the spec's
// cancellation contract: "completes in-flight chunks and then returns").
func Run(ctx context.Context, idx *raptorindex.RaptorIndex, cfg config.Config, agg *transferpatterns.Aggregator, sink ProgressSink, logger Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = config.Default().ChunkSize
	}

	chunks := chunkStops(idx.Stops, chunkSize)

	var handle ProgressHandle
	if sink != nil {
		handle = sink.Add(len(idx.Stops))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.GOMAXPROCS(0))

	for _, chunk := range chunks {
		chunk := chunk
		group.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}

			results := make([]rangequery.Result, 0, len(chunk))
			for _, stop := range chunk {
				res, err := rangequery.QueryRangeAll(idx, stop, cfg.DefaultEarliestDeparture, cfg.DefaultRangeWindow, cfg.MaxRounds)
				if err != nil {
					logger.Warn("range query failed, skipping stop", "stop", stop, "error", err)
					continue
				}
				results = append(results, res)
			}

			if err := agg.AddMultiple(results); err != nil {
				return err
			}
			if handle != nil {
				handle.Inc(len(chunk))
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	if handle != nil {
		handle.FinishWithMessage("all stops processed")
	}
	return nil
}

// chunkStops partitions stops into fixed-size chunks, the last possibly
// shorter.
func chunkStops(stops []types.StopId, size int) [][]types.StopId {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]types.StopId, 0, (len(stops)+size-1)/size)
	for i := 0; i < len(stops); i += size {
		end := i + size
		if end > len(stops) {
			end = len(stops)
		}
		chunks = append(chunks, stops[i:end])
	}
	return chunks
}
