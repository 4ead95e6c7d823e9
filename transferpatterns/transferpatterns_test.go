package transferpatterns_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antigravity/raptorprep/rangequery"
	"github.com/antigravity/raptorprep/transferpatterns"
	"github.com/antigravity/raptorprep/types"
)

func sampleJourney() rangequery.Journey {
	lineA := rangequery.ViaTrip{Trip: 1, Line: 10}
	lineB := rangequery.ViaTrip{Trip: 2, Line: 20}
	return rangequery.Journey{
		From: 1, To: 4,
		Legs: []rangequery.Leg{
			{From: 1, To: 2, ViaTrip: &lineA},
			{From: 2, To: 3, ViaTrip: &lineB},
			{From: 3, To: 4}, // walking transfer, ViaTrip nil
		},
	}
}

func TestFromJourney_CollapsesConsecutiveLegsOnSameLine(t *testing.T) {
	line := rangequery.ViaTrip{Trip: 1, Line: 10}
	j := rangequery.Journey{
		Legs: []rangequery.Leg{
			{From: 1, To: 2, ViaTrip: &line},
			{From: 2, To: 3, ViaTrip: &line},
		},
	}
	p := transferpatterns.FromJourney(j)
	assert.Equal(t, []types.LineId{10}, p.Lines)
	assert.Empty(t, p.TransferStops, "no transfer when the same line continues")
}

func TestFromJourney_RecordsTransferStopOnLineChange(t *testing.T) {
	p := transferpatterns.FromJourney(sampleJourney())
	assert.Equal(t, []types.LineId{10, 20}, p.Lines)
	assert.Equal(t, []types.StopId{2}, p.TransferStops)
}

func TestAggregator_AddMultipleIsIdempotent(t *testing.T) {
	agg := transferpatterns.New()
	result := rangequery.Result{Origin: 1, Journeys: []rangequery.Journey{sampleJourney()}}

	require.NoError(t, agg.AddMultiple([]rangequery.Result{result}))
	require.NoError(t, agg.AddMultiple([]rangequery.Result{result}))

	snapshot, err := agg.Freeze()
	require.NoError(t, err)
	assert.Len(t, snapshot[1], 1, "inserting the same pattern twice must not duplicate it")
}

func TestAggregator_OrderIndependentAcrossConcurrentBatches(t *testing.T) {
	j1 := sampleJourney()
	j2 := sampleJourney()
	j2.To = 5
	line := rangequery.ViaTrip{Trip: 3, Line: 30}
	j2.Legs = []rangequery.Leg{{From: 1, To: 5, ViaTrip: &line}}

	agg := transferpatterns.New()
	var wg sync.WaitGroup
	batches := [][]rangequery.Result{
		{{Origin: 1, Journeys: []rangequery.Journey{j1}}},
		{{Origin: 1, Journeys: []rangequery.Journey{j2}}},
	}
	for _, batch := range batches {
		batch := batch
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = agg.AddMultiple(batch)
		}()
	}
	wg.Wait()

	snapshot, err := agg.Freeze()
	require.NoError(t, err)
	assert.Len(t, snapshot[1], 2, "both concurrently-inserted patterns should survive regardless of arrival order")
}

func TestAggregator_RejectsInsertionAfterFreeze(t *testing.T) {
	agg := transferpatterns.New()
	_, err := agg.Freeze()
	require.NoError(t, err)

	err = agg.AddMultiple([]rangequery.Result{{Origin: 1}})
	require.Error(t, err)
	var syncErr *transferpatterns.SynchronizationError
	assert.ErrorAs(t, err, &syncErr)
}

func TestAggregator_RejectsDoubleFreeze(t *testing.T) {
	agg := transferpatterns.New()
	_, err := agg.Freeze()
	require.NoError(t, err)

	_, err = agg.Freeze()
	require.Error(t, err)
}
