// Package feedback defines the upstream-facing "wake me when you have room"
// signal used by process queues to unblock the inputs stalled behind them.
package feedback

import "github.com/messixukejia/loongcollector/internal/model"

// Interface is implemented by anything an input registers with a process
// queue so the queue can notify it once the queue crosses its low
// watermark again. Feedback implementations must not block: they are
// invoked while the queue's internal lock may still be contended by the
// scheduler thread.
type Interface interface {
	FeedbackQueueAvailable(key model.QueueKey)
}

// Func adapts a plain function to Interface, letting tests satisfy it
// with a closure instead of a named type.
type Func func(key model.QueueKey)

func (f Func) FeedbackQueueAvailable(key model.QueueKey) { f(key) }
