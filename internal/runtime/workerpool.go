package runtime

import (
	"time"

	"go.uber.org/zap"
)

// idlePollInterval is how long a processor or sender worker waits after
// finding nothing to do before polling again, trading a little latency for
// not spinning a CPU core on an idle pipeline.
const idlePollInterval = 5 * time.Millisecond

// StartWorkerPools launches the processor-pool and sender-pool goroutine
// groups that actually drive data through every live pipeline: one group
// pops items from ProcessQueues and runs them through
// CollectionPipeline.Process/Send, the other drains SenderQueues and hands
// items to the flusher that owns them. A third goroutine periodically
// reaps queues both managers have marked for deletion. Called once from
// Run; StopWorkerPools reverses it.
func (r *Runtime) StartWorkerPools() {
	r.poolStop = make(chan struct{})

	for i := 0; i < r.cfg.ProcessorPoolSize; i++ {
		r.poolWG.Add(1)
		go r.processorWorker()
	}
	for i := 0; i < r.cfg.SenderPoolSize; i++ {
		r.poolWG.Add(1)
		go r.senderWorker()
	}
	r.poolWG.Add(1)
	go r.gcWorker()
}

// StopWorkerPools signals every pool worker to exit and waits for them to
// drain out of their loops. Safe to call even if StartWorkerPools was
// never called.
func (r *Runtime) StopWorkerPools() {
	if r.poolStop == nil {
		return
	}
	close(r.poolStop)
	r.poolWG.Wait()
	r.poolStop = nil
}

// processorWorker repeatedly pops the next available item across every
// registered process queue and runs it to completion. PopItem's own
// priority-bucket fairness policy means many workers pulling from the same
// manager still divide work evenly; a queue with nothing poppable just
// costs the worker one failed draw before it tries the next bucket.
func (r *Runtime) processorWorker() {
	defer r.poolWG.Done()
	for {
		select {
		case <-r.poolStop:
			return
		default:
		}

		item, key, ok := r.ProcessQueues.PopItem()
		if !ok {
			r.waitOrStop(idlePollInterval)
			continue
		}

		pipeline, found := r.Pipelines.FindPipelineByQueueKey(key)
		if !found {
			r.Logger.Warn("popped process item for a queue key with no owning pipeline", zap.Uint64("queueKey", uint64(key)))
			continue
		}
		pipeline.ProcessAndSend(item)
	}
}

// senderWorker repeatedly draws a batch of sendable items across every
// registered sender queue and hands each to its owning pipeline for
// delivery.
func (r *Runtime) senderWorker() {
	defer r.poolWG.Done()
	for {
		select {
		case <-r.poolStop:
			return
		default:
		}

		items := r.SenderQueues.GetAvailableItems(r.cfg.SenderBatchSize)
		if len(items) == 0 {
			r.waitOrStop(idlePollInterval)
			continue
		}

		for _, item := range items {
			pipeline, found := r.Pipelines.FindPipelineByQueueKey(item.QueueKey)
			if !found {
				r.Logger.Warn("drew sender item for a queue key with no owning pipeline", zap.Uint64("queueKey", uint64(item.QueueKey)))
				continue
			}
			pipeline.SendItem(item)
		}
	}
}

// gcWorker periodically reaps queues both managers have marked deleted and
// since drained, on the same cadence as the grace period itself.
func (r *Runtime) gcWorker() {
	defer r.poolWG.Done()
	ticker := time.NewTicker(r.cfg.GCGrace)
	defer ticker.Stop()
	for {
		select {
		case <-r.poolStop:
			return
		case <-ticker.C:
			r.ProcessQueues.RunGC()
			r.SenderQueues.RunGC()
		}
	}
}

// waitOrStop sleeps for d unless poolStop closes first, so an idle worker
// still exits promptly on shutdown instead of waiting out a full interval.
func (r *Runtime) waitOrStop(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-r.poolStop:
	case <-t.C:
	}
}
