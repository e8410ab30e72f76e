package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestForQueueIncrementsLabeledCounters(t *testing.T) {
	reg := NewRegistry()
	qm := reg.ForQueue(QueueLabels{
		Project:       "proj",
		PipelineName:  "p1",
		ComponentName: ComponentProcessQueue,
		QueueType:     QueueTypeBounded,
	})

	qm.InItemsTotal.Inc()
	qm.InItemsTotal.Inc()
	qm.QueueSizeTotal.Set(3)

	if got := testutil.ToFloat64(qm.InItemsTotal); got != 2 {
		t.Fatalf("expected in_items_total to be 2, got %v", got)
	}
	if got := testutil.ToFloat64(qm.QueueSizeTotal); got != 3 {
		t.Fatalf("expected queue_size_total to be 3, got %v", got)
	}
}

func TestForQueueIsStablePerLabelSet(t *testing.T) {
	reg := NewRegistry()
	labels := QueueLabels{Project: "proj", PipelineName: "p1", ComponentName: ComponentSenderQueue, QueueType: QueueTypeSender}

	a := reg.ForQueue(labels)
	a.OutItemsTotal.Inc()

	b := reg.ForQueue(labels)
	if got := testutil.ToFloat64(b.OutItemsTotal); got != 1 {
		t.Fatalf("expected the same label set to resolve to the same counter, got %v", got)
	}
}

func TestForPipelineIsolatesByPipelineName(t *testing.T) {
	reg := NewRegistry()
	a := reg.ForPipeline("proj", "pipeline-a")
	b := reg.ForPipeline("proj", "pipeline-b")

	a.ProcessorsInEventsTotal.Add(5)
	if got := testutil.ToFloat64(b.ProcessorsInEventsTotal); got != 0 {
		t.Fatalf("expected pipeline-b's counter to be untouched, got %v", got)
	}
	if got := testutil.ToFloat64(a.ProcessorsInEventsTotal); got != 5 {
		t.Fatalf("expected pipeline-a's counter to be 5, got %v", got)
	}
}

func TestRegistererExposesUnderlyingRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg.Registerer() == nil {
		t.Fatalf("expected Registerer to return a non-nil prometheus.Registry")
	}
}
