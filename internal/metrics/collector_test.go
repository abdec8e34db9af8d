package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_RecordAgentCall(t *testing.T) {
	c := NewCollector("agentcore", nil)

	c.RecordAgentCall("job_analyzer", true, 250*time.Millisecond)
	c.RecordAgentCall("job_analyzer", true, 100*time.Millisecond)
	c.RecordAgentCall("job_analyzer", false, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.agentCallsTotal.WithLabelValues("job_analyzer", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.agentCallsTotal.WithLabelValues("job_analyzer", "error")))
}

func TestCollector_RecordOperationTransition(t *testing.T) {
	c := NewCollector("agentcore", nil)

	c.RecordOperationTransition("running")
	c.RecordOperationTransition("completed")
	c.RecordOperationTransition("completed")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operationTransitions.WithLabelValues("running")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.operationTransitions.WithLabelValues("completed")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("agentcore", nil)
	c.RecordAgentCall("coach", true, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "agentcore_agent_calls_total")
}
