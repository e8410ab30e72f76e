package feedback

import (
	"testing"

	"github.com/messixukejia/loongcollector/internal/model"
)

func TestFuncAdaptsToInterface(t *testing.T) {
	var got model.QueueKey
	var f Interface = Func(func(key model.QueueKey) { got = key })

	f.FeedbackQueueAvailable(model.QueueKey(42))
	if got != 42 {
		t.Fatalf("expected the wrapped function to be invoked with the key, got %v", got)
	}
}
