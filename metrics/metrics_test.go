package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObserveOperation(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		duration float64
		success  bool
	}{
		{name: "60ms success", op: "get", duration: 60 * time.Millisecond.Seconds(), success: true},
		{name: "15ms success", op: "set", duration: 15 * time.Millisecond.Seconds(), success: true},
		{name: "100ms failure", op: "delete", duration: 100 * time.Millisecond.Seconds(), success: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ObserveOperation(tt.op, tt.duration, tt.success)

			success := "0"
			if tt.success {
				success = "1"
			}
			_, err := OperationDuration.GetMetricWith(map[string]string{opLabel: tt.op, successLabel: success})
			assert.NoError(t, err)
		})
	}
}

func TestSetQueueDepthAndIncReconnect(t *testing.T) {
	SetQueueDepth("127.0.0.1:11211", 1, 2, 3)
	_, err := NodeQueueDepth.GetMetricWith(map[string]string{nodeLabel: "127.0.0.1:11211", queueLabel: "write"})
	assert.NoError(t, err)

	IncReconnect("127.0.0.1:11211")
	_, err = Reconnects.GetMetricWith(map[string]string{nodeLabel: "127.0.0.1:11211"})
	assert.NoError(t, err)
}
