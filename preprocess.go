// Package raptorprep wires the preprocessing stages together: the direct
// connections builder, the RAPTOR index builder, the parallel range-query
// orchestrator, and the transfer patterns aggregator. Callers needing only
// the index (for a query-time server, say) can stop at Preprocess;
// PreprocessTransferPatterns runs the full pipeline.
package raptorprep

import (
	"context"
	"fmt"

	"github.com/antigravity/raptorprep/config"
	"github.com/antigravity/raptorprep/directconn"
	"github.com/antigravity/raptorprep/input"
	"github.com/antigravity/raptorprep/orchestrator"
	"github.com/antigravity/raptorprep/raptorindex"
	"github.com/antigravity/raptorprep/transferpatterns"
	"github.com/antigravity/raptorprep/types"
)

// TransferPatternsIndex is the final preprocessing artifact: the RAPTOR
// index plus the transfer patterns every origin stop's journeys exercise.
type TransferPatternsIndex struct {
	Raptor   *raptorindex.RaptorIndex
	Patterns map[types.StopId][]transferpatterns.TransferPattern
}

// Preprocess runs the direct connections and RAPTOR index builders,
// producing the dense indexes a query-time algorithm needs. It does not
// run the parallel range-query stage.
func Preprocess(in input.PreprocessingInput, cfg config.Config) (*raptorindex.RaptorIndex, error) {
	dc, err := directconn.Build(in)
	if err != nil {
		return nil, fmt.Errorf("building direct connections: %w", err)
	}

	idx, err := raptorindex.Build(in.Stops, dc, cfg.MaxSpeedKmh, cfg.StrictValidation)
	if err != nil {
		return nil, fmt.Errorf("building raptor index: %w", err)
	}
	return idx, nil
}

// PreprocessTransferPatterns runs the complete pipeline: index
// construction, then a parallel range query over every stop, aggregated
// into the final transfer patterns index. ctx governs cooperative
// cancellation of the orchestration stage only; index construction always
// runs to completion.
func PreprocessTransferPatterns(
	ctx context.Context,
	in input.PreprocessingInput,
	cfg config.Config,
	sink orchestrator.ProgressSink,
	logger orchestrator.Logger,
) (*TransferPatternsIndex, error) {
	idx, err := Preprocess(in, cfg)
	if err != nil {
		return nil, err
	}

	agg := transferpatterns.New()
	if err := orchestrator.Run(ctx, idx, cfg, agg, sink, logger); err != nil {
		return nil, fmt.Errorf("orchestrating range queries: %w", err)
	}

	patterns, err := agg.Freeze()
	if err != nil {
		return nil, fmt.Errorf("freezing transfer patterns: %w", err)
	}

	return &TransferPatternsIndex{Raptor: idx, Patterns: patterns}, nil
}
