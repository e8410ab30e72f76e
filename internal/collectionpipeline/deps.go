package collectionpipeline

import (
	"go.uber.org/zap"

	"github.com/messixukejia/loongcollector/internal/keymgr"
	"github.com/messixukejia/loongcollector/internal/metrics"
	"github.com/messixukejia/loongcollector/internal/queuemgr"
)

// Deps is the set of process-wide singletons a CollectionPipeline needs at
// init time. A top-level runtime value owns and constructs these once at
// bootstrap and hands the same Deps to every pipeline it builds -- this
// package intentionally does not reach for globals.
type Deps struct {
	Keys          *keymgr.Manager
	ProcessQueues *queuemgr.ProcessQueueManager
	SenderQueues  *queuemgr.SenderQueueManager
	ExactlyOnce   *queuemgr.ExactlyOnceQueueManager
	Metrics       *metrics.Registry
	Logger        *zap.Logger
}
