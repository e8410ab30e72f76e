// Package metrics wires the prometheus client into a labeled
// counter/gauge surface, using a four-label convention (project,
// pipeline name, component name, queue type) attached to every queue
// metric so per-pipeline and per-queue breakdowns stay queryable.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	LabelProject       = "project"
	LabelPipelineName  = "pipeline_name"
	LabelComponentName = "component_name"
	LabelQueueType     = "queue_type"

	ComponentProcessQueue = "process_queue"
	ComponentSenderQueue  = "sender_queue"
	ComponentPipeline     = "pipeline"

	QueueTypeBounded      = "bounded"
	QueueTypeCircular     = "circular"
	QueueTypeSender       = "sender"
	QueueTypeExactlyOnce  = "exactly_once"
)

var labelNames = []string{LabelProject, LabelPipelineName, LabelComponentName, LabelQueueType}

// Registry builds every labeled metric vector up front and caches it, registering
// each vector with prometheus exactly once regardless of how many queues
// end up sharing it (one vector per metric name, many label combinations).
type Registry struct {
	reg *prometheus.Registry

	inItemsTotal        *prometheus.CounterVec
	outItemsTotal       *prometheus.CounterVec
	inItemDataSizeBytes  *prometheus.CounterVec
	queueSizeTotal       *prometheus.GaugeVec
	queueDataSizeByte    *prometheus.GaugeVec
	validToPushFlag      *prometheus.GaugeVec
	discardedItemsTotal  *prometheus.CounterVec

	processorsInEventsTotal   *prometheus.CounterVec
	processorsInGroupsTotal   *prometheus.CounterVec
	processorsInSizeBytes     *prometheus.CounterVec
	processorsTotalProcessMs  *prometheus.CounterVec
	flushersInGroupsTotal     *prometheus.CounterVec
	flushersInEventsTotal     *prometheus.CounterVec
	flushersInSizeBytes       *prometheus.CounterVec
	flushersTotalPackageMs    *prometheus.CounterVec
	flushersOutItemsTotal     *prometheus.CounterVec
}

// NewRegistry creates a fresh prometheus.Registry with every metric vector
// pre-registered. Tests typically create one Registry per test case to
// avoid cross-test label collisions.
func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.inItemsTotal = r.counterVec("loongcollector_in_items_total", "Items accepted by a queue.")
	r.outItemsTotal = r.counterVec("loongcollector_out_items_total", "Items popped from a queue.")
	r.inItemDataSizeBytes = r.counterVec("loongcollector_in_item_data_size_bytes", "Bytes accepted by a queue.")
	r.discardedItemsTotal = r.counterVec("loongcollector_discarded_items_total", "Items dropped by a circular queue eviction.")

	r.queueSizeTotal = r.gaugeVec("loongcollector_queue_size_total", "Current item count resident in a queue.")
	r.queueDataSizeByte = r.gaugeVec("loongcollector_queue_data_size_byte", "Current byte footprint resident in a queue.")
	r.validToPushFlag = r.gaugeVec("loongcollector_valid_to_push_flag", "1 if the queue currently admits pushes, else 0.")

	r.processorsInEventsTotal = r.counterVec("loongcollector_processors_in_events_total", "Events entering the processor chain.")
	r.processorsInGroupsTotal = r.counterVec("loongcollector_processors_in_groups_total", "Groups entering the processor chain.")
	r.processorsInSizeBytes = r.counterVec("loongcollector_processors_in_size_bytes", "Bytes entering the processor chain.")
	r.processorsTotalProcessMs = r.counterVec("loongcollector_processors_total_process_time_ms", "Accumulated processor chain runtime.")
	r.flushersInGroupsTotal = r.counterVec("loongcollector_flushers_in_groups_total", "Groups handed to flushers.")
	r.flushersInEventsTotal = r.counterVec("loongcollector_flushers_in_events_total", "Events handed to flushers.")
	r.flushersInSizeBytes = r.counterVec("loongcollector_flushers_in_size_bytes", "Bytes handed to flushers.")
	r.flushersTotalPackageMs = r.counterVec("loongcollector_flushers_total_package_time_ms", "Accumulated flusher serialization time.")
	r.flushersOutItemsTotal = r.counterVec("loongcollector_flushers_out_items_total", "Items successfully sent by a flusher.")

	return r
}

// Registerer exposes the underlying prometheus.Registry for /metrics
// handlers and for tests using prometheus/testutil.
func (r *Registry) Registerer() *prometheus.Registry { return r.reg }

func (r *Registry) counterVec(name, help string) *prometheus.CounterVec {
	v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labelNames)
	r.reg.MustRegister(v)
	return v
}

func (r *Registry) gaugeVec(name, help string) *prometheus.GaugeVec {
	v := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labelNames)
	r.reg.MustRegister(v)
	return v
}

// QueueLabels is the label tuple attached to every queue-level metric.
type QueueLabels struct {
	Project       string
	PipelineName  string
	ComponentName string
	QueueType     string
}

func (l QueueLabels) values() prometheus.Labels {
	return prometheus.Labels{
		LabelProject:       l.Project,
		LabelPipelineName:  l.PipelineName,
		LabelComponentName: l.ComponentName,
		LabelQueueType:     l.QueueType,
	}
}

// QueueMetrics is the bundle of counters/gauges one queue instance updates;
// it is handed to queues at construction time so the queue never has to
// know about the Registry or label plumbing.
type QueueMetrics struct {
	InItemsTotal        prometheus.Counter
	OutItemsTotal       prometheus.Counter
	InItemDataSizeBytes prometheus.Counter
	QueueSizeTotal      prometheus.Gauge
	QueueDataSizeByte   prometheus.Gauge
	ValidToPushFlag     prometheus.Gauge
	DiscardedItemsTotal prometheus.Counter
}

// ForQueue resolves (or creates) the label-bound metric handles for one
// queue.
func (r *Registry) ForQueue(l QueueLabels) *QueueMetrics {
	lv := l.values()
	return &QueueMetrics{
		InItemsTotal:        r.inItemsTotal.With(lv),
		OutItemsTotal:       r.outItemsTotal.With(lv),
		InItemDataSizeBytes: r.inItemDataSizeBytes.With(lv),
		QueueSizeTotal:      r.queueSizeTotal.With(lv),
		QueueDataSizeByte:   r.queueDataSizeByte.With(lv),
		ValidToPushFlag:     r.validToPushFlag.With(lv),
		DiscardedItemsTotal: r.discardedItemsTotal.With(lv),
	}
}

// PipelineMetrics is the bundle of stage-level counters one pipeline
// updates as groups flow through Process/Send.
type PipelineMetrics struct {
	ProcessorsInEventsTotal  prometheus.Counter
	ProcessorsInGroupsTotal  prometheus.Counter
	ProcessorsInSizeBytes    prometheus.Counter
	ProcessorsTotalProcessMs prometheus.Counter
	FlushersInGroupsTotal    prometheus.Counter
	FlushersInEventsTotal    prometheus.Counter
	FlushersInSizeBytes      prometheus.Counter
	FlushersTotalPackageMs   prometheus.Counter
	FlushersOutItemsTotal    prometheus.Counter
}

// ForPipeline resolves the label-bound stage counters for one pipeline.
func (r *Registry) ForPipeline(project, pipelineName string) *PipelineMetrics {
	l := QueueLabels{Project: project, PipelineName: pipelineName, ComponentName: ComponentPipeline}.values()
	return &PipelineMetrics{
		ProcessorsInEventsTotal:  r.processorsInEventsTotal.With(l),
		ProcessorsInGroupsTotal:  r.processorsInGroupsTotal.With(l),
		ProcessorsInSizeBytes:    r.processorsInSizeBytes.With(l),
		ProcessorsTotalProcessMs: r.processorsTotalProcessMs.With(l),
		FlushersInGroupsTotal:    r.flushersInGroupsTotal.With(l),
		FlushersInEventsTotal:    r.flushersInEventsTotal.With(l),
		FlushersInSizeBytes:      r.flushersInSizeBytes.With(l),
		FlushersTotalPackageMs:   r.flushersTotalPackageMs.With(l),
		FlushersOutItemsTotal:    r.flushersOutItemsTotal.With(l),
	}
}
