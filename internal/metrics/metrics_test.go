package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordStartByLabel(t *testing.T) {
	before := testutil.ToFloat64(sessionStartsTotal.WithLabelValues("file"))
	RecordStart("file")
	RecordStart("file")
	assert.Equal(t, before+2, testutil.ToFloat64(sessionStartsTotal.WithLabelValues("file")))
}

func TestRecordEventByChannel(t *testing.T) {
	hyp := testutil.ToFloat64(eventsRelayedTotal.WithLabelValues("hypothesis"))
	rec := testutil.ToFloat64(eventsRelayedTotal.WithLabelValues("recognized"))

	RecordEvent("hypothesis")

	assert.Equal(t, hyp+1, testutil.ToFloat64(eventsRelayedTotal.WithLabelValues("hypothesis")))
	assert.Equal(t, rec, testutil.ToFloat64(eventsRelayedTotal.WithLabelValues("recognized")))
}

func TestLifecycleCounters(t *testing.T) {
	created := testutil.ToFloat64(sessionsCreatedTotal)
	disposed := testutil.ToFloat64(sessionsDisposedTotal)
	failures := testutil.ToFloat64(engineFailuresTotal.WithLabelValues("load_grammar"))

	RecordSessionCreated()
	RecordSessionDisposed()
	RecordEngineFailure("load_grammar")

	assert.Equal(t, created+1, testutil.ToFloat64(sessionsCreatedTotal))
	assert.Equal(t, disposed+1, testutil.ToFloat64(sessionsDisposedTotal))
	assert.Equal(t, failures+1, testutil.ToFloat64(engineFailuresTotal.WithLabelValues("load_grammar")))
}
