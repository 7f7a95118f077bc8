package codec

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/atomscat/softswitch-gateway/internal/eslerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMessage_CommandReplyOK(t *testing.T) {
	raw := "Content-Type: command/reply\nReply-Text: +OK accepted\n\n"
	r := NewReader(strings.NewReader(raw))

	m, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, ContentTypeCommandReply, m.ContentType)
	assert.True(t, m.IsOK())
	assert.False(t, m.IsError())
}

func TestReadMessage_APIResponseWithBody(t *testing.T) {
	raw := "Content-Type: api/response\nContent-Length: 6\n\nSTATUS"
	r := NewReader(strings.NewReader(raw))

	m, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "STATUS", m.Body)
	assert.Equal(t, 6, m.ContentLength)
}

func TestReadMessage_ZeroLengthBody(t *testing.T) {
	raw := "Content-Type: command/reply\nReply-Text: +OK\nContent-Length: 0\n\n"
	r := NewReader(strings.NewReader(raw))

	m, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "", m.Body)
}

func TestReadMessage_EmptyHeaderValue(t *testing.T) {
	raw := "Content-Type: command/reply\nReply-Text: \n\n"
	r := NewReader(strings.NewReader(raw))

	m, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "", m.ReplyText())
}

func TestReadMessage_MalformedHeader(t *testing.T) {
	raw := "this line has no colon\n\n"
	r := NewReader(strings.NewReader(raw))

	_, err := r.ReadMessage()
	require.Error(t, err)
	assert.True(t, errors.Is(err, eslerr.ErrMalformedHeader))
}

func TestReadMessage_UnexpectedEOF(t *testing.T) {
	raw := "Content-Type: api/response\nContent-Length: 100\n\nshort"
	r := NewReader(strings.NewReader(raw))

	_, err := r.ReadMessage()
	require.Error(t, err)
	assert.True(t, errors.Is(err, eslerr.ErrUnexpectedEOF))
}

func TestReadMessage_InvalidContentLength(t *testing.T) {
	raw := "Content-Type: api/response\nContent-Length: notanumber\n\n"
	r := NewReader(strings.NewReader(raw))

	_, err := r.ReadMessage()
	require.Error(t, err)
	assert.True(t, errors.Is(err, eslerr.ErrInvalidContentLength))
}

func TestReadMessage_UnsupportedContentType(t *testing.T) {
	raw := "Content-Type: text/made-up\n\n"
	r := NewReader(strings.NewReader(raw))

	m, err := r.ReadMessage()
	require.Error(t, err)
	var uct *eslerr.UnsupportedContentTypeError
	require.True(t, errors.As(err, &uct))
	assert.Equal(t, "text/made-up", uct.ContentType)
	// Spec requires the frame still be delivered despite the warning.
	require.NotNil(t, m)
}

func TestReadMessage_EventPlainNestedBody(t *testing.T) {
	inner := "Event-Name: DTMF\nDtmf-Digit: 5\nContent-Length: 12\n\nhello\n\nworld"
	raw := "Content-Type: text/event-plain\nContent-Length: " +
		strconv.Itoa(len(inner)) + "\n\n" + inner

	r := NewReader(strings.NewReader(raw))
	m, err := r.ReadMessage()
	require.NoError(t, err)

	ev, err := PromoteEvent(m)
	require.NoError(t, err)
	assert.Equal(t, "DTMF", ev.Name)
	assert.Equal(t, "5", ev.Get("Dtmf-Digit"))
	// The inner body contains a literal blank line; Content-Length is
	// authoritative and must not let it truncate early.
	assert.Equal(t, "hello\n\nworld", ev.MessageBody)
}

func TestReadMessage_URLEncodedHeaderDecodesUTF8(t *testing.T) {
	inner := "Event-Name: CUSTOM\nCaller-Orig-Caller-Id-Name: Jos%C3%A9\n\n"
	raw := "Content-Type: text/event-plain\nContent-Length: " +
		strconv.Itoa(len(inner)) + "\n\n" + inner

	r := NewReader(strings.NewReader(raw))
	m, err := r.ReadMessage()
	require.NoError(t, err)

	ev, err := PromoteEvent(m)
	require.NoError(t, err)
	assert.Equal(t, "José", ev.Get("Caller-Orig-Caller-Id-Name"))
	raw2, _ := ev.EventHeaders.GetRaw("Caller-Orig-Caller-Id-Name")
	assert.Equal(t, "Jos%C3%A9", raw2)
}

func TestReadMessage_EventXML(t *testing.T) {
	body := `<event><headers><Event-Name>HEARTBEAT</Event-Name><Up-Time>10</Up-Time></headers></event>`
	raw := "Content-Type: text/event-xml\nContent-Length: " + strconv.Itoa(len(body)) + "\n\n" + body

	r := NewReader(strings.NewReader(raw))
	m, err := r.ReadMessage()
	require.NoError(t, err)

	ev, err := PromoteEvent(m)
	require.NoError(t, err)
	assert.Equal(t, "HEARTBEAT", ev.Name)
	assert.Equal(t, "10", ev.Get("Up-Time"))
}

func TestFailureText_APIResponseChecksBodyNotReplyText(t *testing.T) {
	raw := "Content-Type: api/response\nContent-Length: 15\n\n-ERR not found\n"
	r := NewReader(strings.NewReader(raw))

	m, err := r.ReadMessage()
	require.NoError(t, err)
	assert.False(t, m.IsError(), "api/response never carries Reply-Text")

	reason, failed := m.FailureText()
	require.True(t, failed)
	assert.Equal(t, "-ERR not found\n", reason)
}

func TestFailureText_CommandReplyChecksReplyText(t *testing.T) {
	raw := "Content-Type: command/reply\nReply-Text: -ERR no such channel\n\n"
	r := NewReader(strings.NewReader(raw))

	m, err := r.ReadMessage()
	require.NoError(t, err)

	reason, failed := m.FailureText()
	require.True(t, failed)
	assert.Equal(t, "-ERR no such channel", reason)
}

func TestFailureText_SuccessfulAPIResponseReportsNoFailure(t *testing.T) {
	raw := "Content-Type: api/response\nContent-Length: 9\n\n+OK ready"
	r := NewReader(strings.NewReader(raw))

	m, err := r.ReadMessage()
	require.NoError(t, err)

	_, failed := m.FailureText()
	assert.False(t, failed)
}

func TestWriter_RoundTripSingleLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteCommand("api status"))
	assert.Equal(t, "api status\n\n", buf.String())
}

func TestWriter_SendMsgBatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	m1 := Execute("", "playback", "/tmp/a.wav", false)
	m2 := Execute("", "playback", "/tmp/b.wav", false)
	require.NoError(t, w.WriteSendMsgBatch(m1, m2))

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n\n"))
	assert.Contains(t, out, "execute-app-arg: /tmp/a.wav")
	assert.Contains(t, out, "execute-app-arg: /tmp/b.wav")
}

func TestSendMsg_RejectsControlCharacters(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	bad := NewSendMsg("uuid\r\nhack")
	err := w.WriteSendMsg(bad)
	assert.Error(t, err)
}

