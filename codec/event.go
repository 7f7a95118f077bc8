package codec

import "fmt"

// Event is a semantic view over a Message whose content-type indicates
// an event (spec.md §3's EslEvent). EventHeaders are a second,
// independent header block: for text/event-plain they come from the
// message body's own header section (spec.md §4.A.3); for text/event-xml
// they come from the parsed <headers> element.
type Event struct {
	Name           string
	EventHeaders   *Headers
	MessageBody    string
	IsCommandReply bool

	raw *Message
}

// Raw returns the underlying Message this Event was promoted from.
func (e *Event) Raw() *Message { return e.raw }

// Get looks up an event header by name, URL-decoded.
func (e *Event) Get(name string) string {
	if e.EventHeaders == nil {
		return ""
	}
	return e.EventHeaders.Get(name)
}

// Has reports whether the named event header was present.
func (e *Event) Has(name string) bool {
	if e.EventHeaders == nil {
		return false
	}
	return e.EventHeaders.Has(name)
}

// JobUUID is a convenience accessor used to correlate BACKGROUND_JOB
// events to their originating bgapi call (spec.md §4.D).
func (e *Event) JobUUID() string {
	return e.Get("Job-UUID")
}

// PromoteCommandReply turns a command/reply Message into the synthetic
// "initial channel data" Event delivered to onConnect in outbound mode
// (spec.md §4.C). The reply's own headers become the event headers since
// there is no nested body to parse.
func PromoteCommandReply(m *Message) *Event {
	return &Event{
		Name:           m.Headers.Get("Event-Name"),
		EventHeaders:   m.Headers,
		MessageBody:    m.Body,
		IsCommandReply: true,
		raw:            m,
	}
}

// PromoteEvent builds an Event from a text/event-plain or text/event-xml
// Message. For text/event-plain, eventHeaders/eventBody were already
// parsed off the wire by Reader.populatePlainEvent (spec.md §4.A step 3).
// For text/event-xml, the body is parsed here on demand (spec.md §4.A
// step 4); implementations "may parse XML or ignore" — this one parses.
func PromoteEvent(m *Message) (*Event, error) {
	switch m.ContentType {
	case ContentTypeEventPlain:
		headers := m.eventHeaders
		if headers == nil {
			headers = NewHeaders()
		}
		return &Event{
			Name:         headers.Get("Event-Name"),
			EventHeaders: headers,
			MessageBody:  m.eventBody,
			raw:          m,
		}, nil
	case ContentTypeEventXML:
		headers, err := parseXMLEventHeaders(m.Body)
		if err != nil {
			return nil, fmt.Errorf("codec: parsing text/event-xml body: %w", err)
		}
		return &Event{
			Name:         headers.Get("Event-Name"),
			EventHeaders: headers,
			raw:          m,
		}, nil
	default:
		return nil, fmt.Errorf("codec: %s is not an event content-type", m.ContentType)
	}
}
