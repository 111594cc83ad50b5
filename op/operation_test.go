package op

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingCallback struct {
	statuses  []Status
	data      []string
	stats     int
	completes int
}

func (r *recordingCallback) ReceivedStatus(s Status) { r.statuses = append(r.statuses, s) }
func (r *recordingCallback) GotData(key string, _ uint32, _ uint64, _ []byte) {
	r.data = append(r.data, key)
}
func (r *recordingCallback) GotStat(string, string) { r.stats++ }
func (r *recordingCallback) Complete()              { r.completes++ }

func TestOperationLifecycleHappyPath(t *testing.T) {
	cb := &recordingCallback{}
	o := New(Get, []string{"foo"}, []byte("get foo\r\n"), cb)

	require.Equal(t, WriteQueued, o.State())
	require.True(t, o.CanStartWrite())

	o.BeginWrite()
	require.Equal(t, Writing, o.State())
	o.FinishWrite()
	require.Equal(t, Reading, o.State())

	o.CompleteWith(Status{Success: true, Message: "STORED"})
	require.Equal(t, Complete, o.State())
	require.Len(t, cb.statuses, 1)
	require.Equal(t, 1, cb.completes)

	// A second completion attempt must not deliver again.
	o.CompleteWith(Status{Success: true, Message: "STORED"})
	require.Len(t, cb.statuses, 1)
	require.Equal(t, 1, cb.completes)
}

func TestOperationCancelBeforeWritePreventsBytes(t *testing.T) {
	cb := &recordingCallback{}
	o := New(Delete, []string{"foo"}, []byte("delete foo\r\n"), cb)

	o.Cancel()
	require.False(t, o.CanStartWrite())

	o.CompleteCancelled()
	require.Equal(t, Cancelled, o.State())
	require.Len(t, cb.statuses, 1)
	require.True(t, cb.statuses[0].Cancelled)
	require.Equal(t, 1, cb.completes)
}

func TestOperationRetryPolicy(t *testing.T) {
	cb := &recordingCallback{}

	queued := New(Store, []string{"a"}, nil, cb)
	require.True(t, queued.CanRetry())

	writing := New(Store, []string{"a"}, nil, cb)
	writing.BeginWrite()
	require.False(t, writing.CanRetry())

	reading := New(Store, []string{"a"}, nil, cb)
	reading.BeginWrite()
	reading.FinishWrite()
	require.False(t, reading.CanRetry())
}

func TestOperationRetryRoundTrip(t *testing.T) {
	cb := &recordingCallback{}
	o := New(Store, []string{"a"}, nil, cb)
	o.MarkRetry()
	require.Equal(t, Retry, o.State())
	o.RequeueForRetry()
	require.Equal(t, WriteQueued, o.State())
}

func TestCancelDuringReadDiscardsResponse(t *testing.T) {
	cb := &recordingCallback{}
	o := New(Get, []string{"a"}, nil, cb)
	o.BeginWrite()
	o.FinishWrite()
	o.Cancel()

	// connection-loss cleanup finds a cancelled, in-flight op.
	o.CompleteCancelled()
	require.Equal(t, Cancelled, o.State())
	require.Equal(t, 1, cb.completes)
	require.True(t, cb.statuses[0].Cancelled)
}
