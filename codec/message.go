// Package codec implements the ESL wire protocol: framing, header
// parsing, event promotion, and command serialization (spec.md §4.A/§4.B).
package codec

// ContentType enumerates the recognized ESL Content-Type values
// (spec.md §3, §6). Any other value keeps its raw header string and is
// still delivered to the connection handler; ContentTypeUnknown is the
// value of a frame that carries no Content-Type header.
type ContentType string

const (
	ContentTypeAuthRequest      ContentType = "auth/request"
	ContentTypeCommandReply     ContentType = "command/reply"
	ContentTypeAPIResponse      ContentType = "api/response"
	ContentTypeEventPlain       ContentType = "text/event-plain"
	ContentTypeEventXML         ContentType = "text/event-xml"
	ContentTypeDisconnectNotice ContentType = "text/disconnect-notice"
	ContentTypeRudeRejection    ContentType = "text/rude-rejection"
	ContentTypeUnknown          ContentType = ""
)

// Message is a parsed ESL protocol frame (spec.md §3's EslMessage).
type Message struct {
	Headers       *Headers
	ContentType   ContentType
	Body          string
	ContentLength int

	// eventHeaders/eventBody are populated by Reader.populatePlainEvent
	// for text/event-plain frames: the body's own nested header block and
	// trailing message body (spec.md §4.A step 3). PromoteEvent uses them
	// when assembling an Event.
	eventHeaders *Headers
	eventBody    string
}

// newMessage builds a Message from parsed headers and a body, resolving
// ContentType and ContentLength from the header block.
func newMessage(h *Headers, body string) *Message {
	ct := ContentType(h.Get("Content-Type"))
	m := &Message{Headers: h, ContentType: ct, Body: body}
	if cl, ok := h.GetRaw("Content-Length"); ok {
		if n, err := parseContentLength(cl); err == nil {
			m.ContentLength = n
		}
	}
	return m
}

// ReplyText returns the Reply-Text header, used to classify command
// replies as success ("+OK ...") or failure ("-ERR ...") per spec.md §6.
func (m *Message) ReplyText() string {
	return m.Headers.Get("Reply-Text")
}

// IsOK reports whether ReplyText carries a "+OK" success marker.
func (m *Message) IsOK() bool {
	rt := m.ReplyText()
	return len(rt) >= 3 && rt[:3] == "+OK"
}

// IsError reports whether ReplyText carries a "-ERR " failure marker.
func (m *Message) IsError() bool {
	rt := m.ReplyText()
	return len(rt) >= 5 && rt[:5] == "-ERR "
}

// FailureText returns the command's failure text and true if m represents
// a failed command. command/reply frames carry it in Reply-Text;
// api/response frames instead carry it as the body itself (FreeSWITCH
// never populates Reply-Text for "api"), per eventsocket.go's
// content-type-specific "-ERR" check.
func (m *Message) FailureText() (string, bool) {
	if m.ContentType == ContentTypeAPIResponse {
		if len(m.Body) >= 5 && m.Body[:5] == "-ERR " {
			return m.Body, true
		}
		return "", false
	}
	if m.IsError() {
		return m.ReplyText(), true
	}
	return "", false
}

// JobUUID returns the Job-UUID header, if present (used both on bgapi
// command/reply frames and on BACKGROUND_JOB events).
func (m *Message) JobUUID() string {
	return m.Headers.Get("Job-UUID")
}
