package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atomscat/softswitch-gateway/codec"
	"github.com/atomscat/softswitch-gateway/internal/eslerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOKMessage(body string) *codec.Message {
	h := codec.NewHeaders()
	h.Set("Content-Type", "api/response")
	m := &codec.Message{Headers: h, ContentType: codec.ContentTypeAPIResponse, Body: body}
	return m
}

func newErrMessage(reason string) *codec.Message {
	h := codec.NewHeaders()
	h.Set("Content-Type", "command/reply")
	h.Set("Reply-Text", "-ERR "+reason)
	return &codec.Message{Headers: h, ContentType: codec.ContentTypeCommandReply}
}

func TestReplyQueue_FIFOOrder(t *testing.T) {
	q := NewReplyQueue()
	pA := NewPromise[*codec.Message]()
	pB := NewPromise[*codec.Message]()
	q.Push(pA)
	q.Push(pB)

	require.True(t, q.Pop(newOKMessage("a")))
	require.True(t, q.Pop(newOKMessage("b")))

	ctx := context.Background()
	va, err := pA.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", va.Body)

	vb, err := pB.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", vb.Body)
}

func TestReplyQueue_PopOnEmptyReturnsFalse(t *testing.T) {
	q := NewReplyQueue()
	assert.False(t, q.Pop(newOKMessage("late")))
}

func TestReplyQueue_ErrorReplyFailsPromise(t *testing.T) {
	q := NewReplyQueue()
	p := NewPromise[*codec.Message]()
	q.Push(p)
	q.Pop(newErrMessage("no such channel"))

	_, err := p.Wait(context.Background())
	require.Error(t, err)
	var cmdErr *eslerr.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "no such channel", cmdErr.ReplyText)
}

func TestReplyQueue_TimeoutThenLateReplyDropped_NoFIFOSkew(t *testing.T) {
	q := NewReplyQueue()
	pA := NewPromise[*codec.Message]()
	pB := NewPromise[*codec.Message]()
	q.Push(pA)

	// A times out before its reply arrives.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := pA.Wait(ctx)
	require.ErrorIs(t, err, eslerr.ErrTimeout)
	pA.Fail(eslerr.ErrTimeout)

	// B is submitted after A's timeout fires.
	q.Push(pB)

	// A's late reply arrives first on the wire.
	require.True(t, q.Pop(newOKMessage("late-for-a")))
	va, _ := pA.Wait(context.Background())
	assert.Nil(t, va, "late reply must not overwrite the already-failed promise")

	// B's reply arrives next and must still correlate to B, not skew.
	require.True(t, q.Pop(newOKMessage("b")))
	vb, err := pB.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", vb.Body)
}

func TestRegistry_DuplicateJobID(t *testing.T) {
	r := NewRegistry()
	_, err := r.Insert("job-1")
	require.NoError(t, err)

	_, err = r.Insert("job-1")
	require.ErrorIs(t, err, eslerr.ErrDuplicateJobID)
}

func TestRegistry_CompleteResolvesAndRemoves(t *testing.T) {
	r := NewRegistry()
	p, err := r.Insert("job-2")
	require.NoError(t, err)

	ev := &codec.Event{Name: "BACKGROUND_JOB"}
	assert.True(t, r.Complete("job-2", ev))
	assert.Equal(t, 0, r.Len())

	got, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Same(t, ev, got)

	// Completing again (e.g. a duplicate delivery) is a no-op.
	assert.False(t, r.Complete("job-2", ev))
}

func TestRegistry_BackgroundJobUUIDMatchesReply(t *testing.T) {
	r := NewRegistry()
	jobUUID := "11111111-1111-1111-1111-111111111111"
	p, err := r.Insert(jobUUID)
	require.NoError(t, err)

	h := codec.NewHeaders()
	h.Set("Event-Name", "BACKGROUND_JOB")
	h.Set("Job-UUID", jobUUID)
	ev := &codec.Event{Name: "BACKGROUND_JOB", EventHeaders: h}

	require.True(t, r.Complete(ev.JobUUID(), ev))
	got, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, jobUUID, got.JobUUID())
}

func TestRegistry_WaitWithTimeoutSweepsOnExpiry(t *testing.T) {
	r := NewRegistry()
	_, err := r.WaitWithTimeout(context.Background(), "job-3", 5*time.Millisecond)
	require.ErrorIs(t, err, eslerr.ErrTimeout)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_AwaitOnMissingJobReturnsError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Await(context.Background(), "never-inserted", time.Second)
	require.ErrorIs(t, err, eslerr.ErrMissingJobUUID)
}

func TestRegistry_AwaitResolvesAfterInsertThenComplete(t *testing.T) {
	r := NewRegistry()
	_, err := r.Insert("job-4")
	require.NoError(t, err)

	ev := &codec.Event{Name: "BACKGROUND_JOB"}
	go func() {
		time.Sleep(5 * time.Millisecond)
		r.Complete("job-4", ev)
	}()

	got, err := r.Await(context.Background(), "job-4", time.Second)
	require.NoError(t, err)
	assert.Same(t, ev, got)
}

func TestRegistry_AwaitSweepsOnTimeout(t *testing.T) {
	r := NewRegistry()
	_, err := r.Insert("job-5")
	require.NoError(t, err)

	_, err = r.Await(context.Background(), "job-5", 5*time.Millisecond)
	require.ErrorIs(t, err, eslerr.ErrTimeout)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_FailAll(t *testing.T) {
	r := NewRegistry()
	p1, _ := r.Insert("a")
	p2, _ := r.Insert("b")

	r.FailAll(eslerr.ErrConnectionClosed)

	_, err := p1.Wait(context.Background())
	assert.ErrorIs(t, err, eslerr.ErrConnectionClosed)
	_, err = p2.Wait(context.Background())
	assert.ErrorIs(t, err, eslerr.ErrConnectionClosed)
	assert.Equal(t, 0, r.Len())
}
