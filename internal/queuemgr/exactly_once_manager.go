package queuemgr

import (
	"sync"

	"github.com/messixukejia/loongcollector/internal/metrics"
	"github.com/messixukejia/loongcollector/internal/model"
	"github.com/messixukejia/loongcollector/internal/queue"
)

// ExactlyOnceQueueManager is the parallel registry exactly-once pipelines
// use instead of (not in addition to) a plain SenderQueueManager entry.
// It owns two things a bounded sender queue doesn't need: the fixed slot
// count per pipeline (one RangeCheckpoint per file range, sized from
// ExactlyOnceConcurrency) and the hashKey -> checkpoint binding that must
// survive a pipeline reload or process restart so a range resumes at its
// last durable sequence ID instead of re-sending from zero.
type ExactlyOnceQueueManager struct {
	mu sync.RWMutex

	queues      map[model.QueueKey]*queue.ExactlyOnceSenderQueue
	checkpoints map[checkpointKey]*model.RangeCheckpoint // by (pipelineKey, hashKey), survives reload
}

type checkpointKey struct {
	pipelineKey model.QueueKey
	hashKey     string
}

// NewExactlyOnceQueueManager builds an empty manager.
func NewExactlyOnceQueueManager() *ExactlyOnceQueueManager {
	return &ExactlyOnceQueueManager{
		queues:      make(map[model.QueueKey]*queue.ExactlyOnceSenderQueue),
		checkpoints: make(map[checkpointKey]*model.RangeCheckpoint),
	}
}

// CreateQueue builds (or rebuilds) the exactly-once sender queue for
// pipelineKey with one slot per entry in hashKeys, in order: slot i is
// bound to hashKeys[i]. A hashKey seen before for this pipelineKey (e.g.
// surviving a reload) is rebound to its prior RangeCheckpoint, preserving
// SequenceID; a new hashKey starts at SequenceID 0.
func (m *ExactlyOnceQueueManager) CreateQueue(pipelineKey model.QueueKey, pipelineName string, hashKeys []string, fbKeys []string, reg *metrics.Registry) *queue.ExactlyOnceSenderQueue {
	m.mu.Lock()
	defer m.mu.Unlock()

	ckpts := make([]*model.RangeCheckpoint, len(hashKeys))
	for i, hk := range hashKeys {
		ck := checkpointKey{pipelineKey: pipelineKey, hashKey: hk}
		existing, ok := m.checkpoints[ck]
		if !ok {
			existing = &model.RangeCheckpoint{Index: i, HashKey: hk}
			if i < len(fbKeys) {
				existing.FBKey = fbKeys[i]
			}
			m.checkpoints[ck] = existing
		}
		existing.Index = i
		ckpts[i] = existing
	}

	var qm *metrics.QueueMetrics
	if reg != nil {
		qm = reg.ForQueue(metrics.QueueLabels{
			PipelineName:  pipelineName,
			ComponentName: metrics.ComponentSenderQueue,
			QueueType:     metrics.QueueTypeExactlyOnce,
		})
	}

	q := queue.NewExactlyOnceSenderQueue(pipelineKey, ckpts, qm)
	m.queues[pipelineKey] = q
	return q
}

// Queue returns the exactly-once sender queue for pipelineKey.
func (m *ExactlyOnceQueueManager) Queue(pipelineKey model.QueueKey) (*queue.ExactlyOnceSenderQueue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[pipelineKey]
	return q, ok
}

// Checkpoint looks up the persistent checkpoint for (pipelineKey,
// rangeIndex), as CollectionPipeline.stop needs when deciding what to
// preserve across a reload.
func (m *ExactlyOnceQueueManager) Checkpoint(pipelineKey model.QueueKey, rangeIndex int) *model.RangeCheckpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[pipelineKey]
	if !ok {
		return nil
	}
	return q.Checkpoint(rangeIndex)
}

// DeleteQueue removes pipelineKey's queue. When isRemoving is true the
// checkpoints backing every slot are released (a future CreateQueue for
// the same hashKeys starts over at sequence 0); when false (a reload) the
// checkpoints are left in place so the next CreateQueue call rebinds them.
//
// A reload's CreateQueue for the replacement pipeline runs before the old
// pipeline's Stop reaches this call, under the same pipelineKey, so on
// isRemoving=false m.queues[pipelineKey] is already the replacement's
// queue by the time this runs -- removing it here would unregister the
// wrong queue. Only a genuine removal deletes the registry entry.
func (m *ExactlyOnceQueueManager) DeleteQueue(pipelineKey model.QueueKey, isRemoving bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !isRemoving {
		return
	}
	delete(m.queues, pipelineKey)
	for ck := range m.checkpoints {
		if ck.pipelineKey == pipelineKey {
			delete(m.checkpoints, ck)
		}
	}
}
