package raptorprep_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antigravity/raptorprep"
	"github.com/antigravity/raptorprep/config"
	"github.com/antigravity/raptorprep/input"
	"github.com/antigravity/raptorprep/orchestrator"
	"github.com/antigravity/raptorprep/raptorindex"
	"github.com/antigravity/raptorprep/transferpatterns"
	"github.com/antigravity/raptorprep/types"
)

func singleLineFixture() input.PreprocessingInput {
	return input.PreprocessingInput{
		Stops: input.StopsTable{
			StopId: []types.StopId{1, 2, 3},
			Lat:    []float32{40.000, 40.010, 40.020},
			Lon:    []float32{-73.0, -73.0, -73.0},
		},
		Trips: input.TripsTable{TripId: []types.TripId{1}},
		StopTimes: input.StopTimesTable{
			TripId:        []types.TripId{1, 1, 1},
			StopId:        []types.StopId{1, 2, 3},
			StopSequence:  []uint32{0, 1, 2},
			ArrivalTime:   []types.Duration{0, 600000, 1200000},
			DepartureTime: []types.Duration{0, 600000, 1200000},
		},
	}
}

func TestPreprocess_BuildsQueryableIndex(t *testing.T) {
	idx, err := raptorprep.Preprocess(singleLineFixture(), config.Default())
	require.NoError(t, err)
	assert.Len(t, idx.Stops, 3)
}

func TestPreprocessTransferPatterns_EndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.ChunkSize = 1

	result, err := raptorprep.PreprocessTransferPatterns(context.Background(), singleLineFixture(), cfg, nil, nil)
	require.NoError(t, err)

	require.Contains(t, result.Patterns, types.StopId(1))
	var toStop3 bool
	for _, p := range result.Patterns[1] {
		if p.Destination == 3 {
			toStop3 = true
		}
	}
	assert.True(t, toStop3, "a single-line pattern from stop 1 to stop 3 should be aggregated")
}

// fiveStopLineFixture is a single line across five stops, far enough apart
// geographically that no walking transfer ever beats riding the line, wide
// enough to give chunking something non-trivial to split across four
// origins (stops 1-4; stop 5 is a pure destination).
func fiveStopLineFixture() input.PreprocessingInput {
	return input.PreprocessingInput{
		Stops: input.StopsTable{
			StopId: []types.StopId{1, 2, 3, 4, 5},
			Lat:    []float32{0.0, 1.0, 2.0, 3.0, 4.0},
			Lon:    []float32{0.0, 0.0, 0.0, 0.0, 0.0},
		},
		Trips: input.TripsTable{TripId: []types.TripId{1}},
		StopTimes: input.StopTimesTable{
			TripId:       []types.TripId{1, 1, 1, 1, 1},
			StopId:       []types.StopId{1, 2, 3, 4, 5},
			StopSequence: []uint32{0, 1, 2, 3, 4},
			ArrivalTime: []types.Duration{
				0, 600000, 1200000, 1800000, 2400000,
			},
			DepartureTime: []types.Duration{
				0, 600000, 1200000, 1800000, 2400000,
			},
		},
	}
}

type silentLogger struct{}

func (silentLogger) Warn(msg string, args ...any) {}

// canonicalPatterns collapses a transfer patterns snapshot into a plain
// set-of-strings-by-origin shape so two snapshots can be compared for
// equality regardless of map iteration order.
func canonicalPatterns(snapshot map[types.StopId][]transferpatterns.TransferPattern) map[types.StopId]map[string]struct{} {
	out := make(map[types.StopId]map[string]struct{}, len(snapshot))
	for origin, patterns := range snapshot {
		set := make(map[string]struct{}, len(patterns))
		for _, p := range patterns {
			set[fmt.Sprintf("%v|%v|%v", p.Destination, p.Lines, p.TransferStops)] = struct{}{}
		}
		out[origin] = set
	}
	return out
}

// TestOrchestration_ChunkSizeDoesNotAffectAggregation exercises Scenario E:
// the same RAPTOR index, run through the orchestrator with two different
// chunk sizes, must produce the same final transfer patterns.
func TestOrchestration_ChunkSizeDoesNotAffectAggregation(t *testing.T) {
	idx, err := raptorprep.Preprocess(fiveStopLineFixture(), config.Default())
	require.NoError(t, err)

	run := func(chunkSize int) map[types.StopId][]transferpatterns.TransferPattern {
		cfg := config.Default()
		cfg.ChunkSize = chunkSize
		agg := transferpatterns.New()
		require.NoError(t, orchestrator.Run(context.Background(), idx, cfg, agg, nil, silentLogger{}))
		snapshot, err := agg.Freeze()
		require.NoError(t, err)
		return snapshot
	}

	bySingleStop := run(1)
	bySevenStops := run(7)

	require.NotEmpty(t, bySingleStop, "fixture should actually produce patterns to compare")
	assert.Equal(t, canonicalPatterns(bySingleStop), canonicalPatterns(bySevenStops),
		"CHUNK_SIZE=1 and CHUNK_SIZE=7 must aggregate to the same transfer patterns")
}

// TestOrchestration_OneStopFailureDoesNotAffectOthers exercises Scenario F:
// a query failure isolated to one origin must not change preprocessing's
// outcome for any other origin, and must not fail the run.
func TestOrchestration_OneStopFailureDoesNotAffectOthers(t *testing.T) {
	idx, err := raptorprep.Preprocess(fiveStopLineFixture(), config.Default())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.ChunkSize = 2

	cleanAgg := transferpatterns.New()
	require.NoError(t, orchestrator.Run(context.Background(), idx, cfg, cleanAgg, nil, silentLogger{}))
	cleanSnapshot, err := cleanAgg.Freeze()
	require.NoError(t, err)
	require.NotEmpty(t, cleanSnapshot[types.StopId(3)], "fixture should give stop 3 its own patterns in the clean run")

	// Simulate a driver failure local to stop 3: the orchestrator still
	// visits it (it stays in idx.Stops), but rangequery.QueryRangeAll
	// rejects it as unknown because its LinesByStops entry is gone.
	faultyIdx := withoutOriginStop(idx, types.StopId(3))
	faultyLogger := &recordingLogger{}
	faultyAgg := transferpatterns.New()
	err = orchestrator.Run(context.Background(), faultyIdx, cfg, faultyAgg, nil, faultyLogger)
	require.NoError(t, err, "a single failed origin must not fail the whole run")
	require.NotEmpty(t, faultyLogger.warnings, "the failure should be logged, not silently dropped")

	faultySnapshot, err := faultyAgg.Freeze()
	require.NoError(t, err)

	require.NotContains(t, faultySnapshot, types.StopId(3), "the broken origin contributes no patterns of its own")

	delete(cleanSnapshot, types.StopId(3))
	assert.Equal(t, canonicalPatterns(cleanSnapshot), canonicalPatterns(faultySnapshot),
		"every other origin's transfer patterns must be unchanged by stop 3's isolated failure")
}

// withoutOriginStop returns a shallow copy of idx with stop's LinesByStops
// entry removed, so a range query treats it as an unknown origin while
// every other index (including routes passing through stop as a
// destination) stays intact.
func withoutOriginStop(idx *raptorindex.RaptorIndex, stop types.StopId) *raptorindex.RaptorIndex {
	broken := *idx
	broken.LinesByStops = make(map[types.StopId]map[raptorindex.LineSeq]struct{}, len(idx.LinesByStops))
	for s, lines := range idx.LinesByStops {
		if s == stop {
			continue
		}
		broken.LinesByStops[s] = lines
	}
	return &broken
}

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Warn(msg string, args ...any) {
	l.warnings = append(l.warnings, msg)
}

func TestPreprocess_PropagatesSchemaErrors(t *testing.T) {
	bad := input.PreprocessingInput{
		StopTimes: input.StopTimesTable{
			TripId: []types.TripId{1},
			StopId: []types.StopId{1, 2},
		},
	}
	_, err := raptorprep.Preprocess(bad, config.Default())
	require.Error(t, err)
}
