package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAccumulate(t *testing.T) {
	before := testutil.ToFloat64(tasksExecuted.WithLabelValues("call"))
	TaskExecuted("call")
	TaskExecuted("call")
	assert.Equal(t, before+2, testutil.ToFloat64(tasksExecuted.WithLabelValues("call")))

	beforeDiscarded := testutil.ToFloat64(tasksDiscarded)
	TasksDiscarded(3)
	assert.Equal(t, beforeDiscarded+3, testutil.ToFloat64(tasksDiscarded))

	beforeTiles := testutil.ToFloat64(tilesExecuted)
	TilesExecuted(1000)
	assert.Equal(t, beforeTiles+1000, testutil.ToFloat64(tilesExecuted))

	beforeSharded := testutil.ToFloat64(dispatchesIssued.WithLabelValues("sharded"))
	DispatchIssued("sharded")
	assert.Equal(t, beforeSharded+1, testutil.ToFloat64(dispatchesIssued.WithLabelValues("sharded")))
}
