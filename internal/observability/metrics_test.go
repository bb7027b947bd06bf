package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("/chat/conversations", "POST", 201, 15*time.Millisecond)
	m.RecordRequest("/chat/conversations", "POST", 201, 5*time.Millisecond)
	m.RecordError("/chat/conversations/:id", "GET", "NOT_FOUND")
	m.RecordUpload(true)
	m.RecordReviewOutcome("NEEDS_FIX", time.Minute)
	m.SetActiveConversations(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/chat/conversations", "POST", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("/chat/conversations/:id", "GET", "NOT_FOUND")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reviewOutcomes.WithLabelValues("NEEDS_FIX")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.conversations))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordUpload(false)
		m.RecordReviewOutcome("", 0)
		m.SetActiveConversations(1)
	})
	assert.Nil(t, m.Registry())
}
