package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetPhase(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetPhase("LISTENING")
	if got := testutil.ToFloat64(m.SessionPhase.WithLabelValues("LISTENING")); got != 1 {
		t.Errorf("expected LISTENING gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionPhase.WithLabelValues("IDLE")); got != 0 {
		t.Errorf("expected IDLE gauge 0, got %v", got)
	}

	m.SetPhase("IDLE")
	if got := testutil.ToFloat64(m.SessionPhase.WithLabelValues("LISTENING")); got != 0 {
		t.Errorf("expected LISTENING gauge 0 after switch, got %v", got)
	}
}

func TestRecordDispatch(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDispatch("hotels", nil, 0.01)
	m.RecordDispatch("hotels", errors.New("boom"), 0.01)

	if got := testutil.ToFloat64(m.Dispatches.WithLabelValues("hotels")); got != 1 {
		t.Errorf("expected 1 dispatch, got %v", got)
	}
	if got := testutil.ToFloat64(m.ActionFailures.WithLabelValues("hotels")); got != 1 {
		t.Errorf("expected 1 action failure, got %v", got)
	}
}

func TestRecordKafkaPublish(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordKafkaPublish("voice.command.recognized", "recognized", nil, 0.001)
	m.RecordKafkaPublish("voice.command.recognized", "recognized", errors.New("down"), 0.001)

	if got := testutil.ToFloat64(m.KafkaPublishTotal.WithLabelValues("voice.command.recognized", "recognized")); got != 2 {
		t.Errorf("expected 2 publishes, got %v", got)
	}
	if got := testutil.ToFloat64(m.KafkaPublishErrors.WithLabelValues("voice.command.recognized", "recognized")); got != 1 {
		t.Errorf("expected 1 publish error, got %v", got)
	}
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	// Registering twice on distinct registries must not panic.
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}
