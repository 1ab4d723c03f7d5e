package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordMessage("ping", "ok")
	RecordMalformed("tcp")
	SetSessions(3)

	before := testutil.ToFloat64(monitorCycles)
	RecordMonitorCycle()
	require.Equal(t, before+1, testutil.ToFloat64(monitorCycles))

	beforeStep := testutil.ToFloat64(checkFailures.WithLabelValues("connections"))
	RecordCheckFailure("connections")
	require.Equal(t, beforeStep+1, testutil.ToFloat64(checkFailures.WithLabelValues("connections")))

	require.Equal(t, float64(3), testutil.ToFloat64(activeSessions))
}
