package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(replaysTotal.WithLabelValues(OutcomeRetained))
	RecordReplay(OutcomeRetained)
	assert.Equal(t, before+1, testutil.ToFloat64(replaysTotal.WithLabelValues(OutcomeRetained)))

	SetPending(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(pendingGauge))

	before = testutil.ToFloat64(transfersTotal.WithLabelValues("offline", OutcomeSuccess))
	RecordTransfer("offline", OutcomeSuccess)
	assert.Equal(t, before+1, testutil.ToFloat64(transfersTotal.WithLabelValues("offline", OutcomeSuccess)))
}
