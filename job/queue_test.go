package job

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomscat/softswitch-gateway/codec"
)

func TestReplyQueue_PopDeliversInFIFOOrder(t *testing.T) {
	q := NewReplyQueue()
	p1 := NewPromise[*codec.Message]()
	p2 := NewPromise[*codec.Message]()
	q.Push(p1)
	q.Push(p2)

	m1 := mustReadMessage(t, "Content-Type: command/reply\nReply-Text: +OK first\n\n")
	m2 := mustReadMessage(t, "Content-Type: command/reply\nReply-Text: +OK second\n\n")
	require.True(t, q.Pop(m1))
	require.True(t, q.Pop(m2))

	ctx := context.Background()
	got1, err := p1.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "+OK first", got1.ReplyText())

	got2, err := p2.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "+OK second", got2.ReplyText())
}

func TestReplyQueue_PopOnEmptyQueueReportsFalse(t *testing.T) {
	q := NewReplyQueue()
	m := mustReadMessage(t, "Content-Type: command/reply\nReply-Text: +OK\n\n")
	assert.False(t, q.Pop(m))
}

func TestReplyQueue_PopFailsPromiseOnCommandReplyError(t *testing.T) {
	q := NewReplyQueue()
	p := NewPromise[*codec.Message]()
	q.Push(p)

	m := mustReadMessage(t, "Content-Type: command/reply\nReply-Text: -ERR no such channel\n\n")
	require.True(t, q.Pop(m))

	_, err := p.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such channel")
}

func TestReplyQueue_PopFailsPromiseOnAPIResponseBodyError(t *testing.T) {
	// FreeSWITCH never populates Reply-Text for a plain "api" call; a
	// failure shows up as "-ERR ..." in the body instead.
	q := NewReplyQueue()
	p := NewPromise[*codec.Message]()
	q.Push(p)

	body := "-ERR command not found"
	raw := "Content-Type: api/response\nContent-Length: " +
		strconv.Itoa(len(body)) + "\n\n" + body
	m := mustReadMessage(t, raw)
	require.True(t, q.Pop(m))

	_, err := p.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command not found")
}

func TestReplyQueue_PopCompletesPromiseOnSuccessfulAPIResponse(t *testing.T) {
	q := NewReplyQueue()
	p := NewPromise[*codec.Message]()
	q.Push(p)

	body := "+OK ready"
	raw := "Content-Type: api/response\nContent-Length: " +
		strconv.Itoa(len(body)) + "\n\n" + body
	m := mustReadMessage(t, raw)
	require.True(t, q.Pop(m))

	got, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, body, got.Body)
}

func mustReadMessage(t *testing.T, raw string) *codec.Message {
	t.Helper()
	r := codec.NewReader(strings.NewReader(raw))
	m, err := r.ReadMessage()
	require.NoError(t, err)
	return m
}
