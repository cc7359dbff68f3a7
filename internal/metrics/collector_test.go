package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCollector_RecordLLMRequest(t *testing.T) {
	c := NewCollector("skillmate", zaptest.NewLogger(t))

	c.RecordLLMRequest("openai", "general_assistant", "success", 0.42)
	c.RecordLLMRequest("openai", "general_assistant", "success", 0.13)
	c.RecordLLMRequest("gemini", "planner", "error", 1.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("openai", "general_assistant", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.llmRequestsTotal.WithLabelValues("gemini", "planner", "error")))
	// 每个 provider/role 组合一条直方图序列
	assert.Equal(t, 2, testutil.CollectAndCount(c.llmRequestDuration, "skillmate_llm_request_duration_seconds"))
}

func TestCollector_RecordRotationAndRetry(t *testing.T) {
	c := NewCollector("skillmate", zaptest.NewLogger(t))

	c.RecordRotation("openai")
	c.RecordRetry("openai")
	c.RecordRetry("openai")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.keyRotations.WithLabelValues("openai")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.retryAttempts.WithLabelValues("openai")))
}

func TestCollector_RecordPersistenceError(t *testing.T) {
	c := NewCollector("skillmate", zaptest.NewLogger(t))

	c.RecordPersistenceError("save")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.persistenceErrors.WithLabelValues("save")))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("skillmate", zaptest.NewLogger(t))
	b := NewCollector("skillmate", zaptest.NewLogger(t))

	a.RecordRotation("openai")

	families, err := b.Registry().Gather()
	require.NoError(t, err)
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			assert.Zero(t, m.GetCounter().GetValue(), fam.GetName())
		}
	}
}
