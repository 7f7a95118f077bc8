package codec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atomscat/softswitch-gateway/internal/eslerr"
)

// bufferSize mirrors the teacher's socket read buffer
// (eventsocket.go's bufferSize = 1024 << 6).
const bufferSize = 1024 << 6

// Reader parses ESL frames off a byte stream, grounded on the teacher's
// bufio.Reader+textproto.Reader combination and fsock.FSConn's manual
// header/body split for content-length framing.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps an io.Reader (typically a net.Conn) for frame parsing.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, bufferSize)}
}

// ReadMessage reads one full ESL frame: a header block terminated by a
// blank line, followed by a Content-Length-delimited body if present
// (spec.md §4.A, steps 1-2).
func (r *Reader) ReadMessage() (*Message, error) {
	headers, err := r.readHeaderBlock()
	if err != nil {
		return nil, err
	}

	body, err := r.readBody(headers)
	if err != nil {
		return nil, err
	}

	m := newMessage(headers, body)

	switch m.ContentType {
	case ContentTypeEventPlain:
		if err := r.populatePlainEvent(m); err != nil {
			return nil, err
		}
	case ContentTypeEventXML:
		// Parsing is deferred to PromoteEvent (parseXMLEventHeaders) since it
		// requires no further bytes off the wire (spec.md §4.A.4).
	case ContentTypeAuthRequest, ContentTypeCommandReply, ContentTypeAPIResponse,
		ContentTypeDisconnectNotice, ContentTypeRudeRejection:
		// Recognized, nothing further to do here.
	default:
		if m.ContentType != "" {
			return m, &eslerr.UnsupportedContentTypeError{ContentType: string(m.ContentType)}
		}
	}

	return m, nil
}

// readHeaderBlock reads "Name: Value" lines until a blank line, in the
// style of the teacher's textproto.Reader.ReadMIMEHeader but preserving
// insertion order (spec.md §3's ordered mapping requirement).
func (r *Reader) readHeaderBlock() (*Headers, error) {
	h := NewHeaders()
	for {
		line, err := r.readLine()
		if err != nil {
			if err == io.EOF && h.Len() == 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: %v", eslerr.ErrUnexpectedEOF, err)
		}
		if line == "" {
			break
		}
		name, value, ok := splitHeaderLine(line)
		if !ok {
			return nil, fmt.Errorf("%w: %q", eslerr.ErrMalformedHeader, line)
		}
		h.Set(name, value)
	}
	return h, nil
}

// readLine reads a single LF-terminated line, trimming the trailing \n
// and an optional \r (FreeSWITCH wire lines are LF-terminated per
// spec.md §6, but some deployments emit \r\n).
func (r *Reader) readLine() (string, error) {
	line, err := r.br.ReadString('\n')
	if err != nil {
		if line == "" {
			return "", io.EOF
		}
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// splitHeaderLine splits "Name: Value" on the first colon, trimming a
// single leading space after it (spec.md §4.A, step 1).
func splitHeaderLine(line string) (name, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	name = line[:idx]
	value = line[idx+1:]
	if strings.HasPrefix(value, " ") {
		value = value[1:]
	}
	return name, value, true
}

// readBody reads exactly Content-Length bytes when that header is
// present and positive; otherwise the body is empty (spec.md §3's
// invariant).
func (r *Reader) readBody(h *Headers) (string, error) {
	raw, ok := h.GetRaw("Content-Length")
	if !ok {
		return "", nil
	}
	n, err := parseContentLength(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", eslerr.ErrInvalidContentLength, raw)
	}
	if n <= 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return "", fmt.Errorf("%w: %v", eslerr.ErrUnexpectedEOF, err)
	}
	return string(buf), nil
}

func parseContentLength(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, eslerr.ErrInvalidContentLength
	}
	return n, nil
}

// populatePlainEvent parses a text/event-plain body as a second header
// block, per spec.md §4.A step 3. The parsed headers and trailing
// message body are stored in m.eventHeaders/m.eventBody so PromoteEvent
// can assemble an Event (its EventHeaders/MessageBody) without
// re-reading the wire.
func (r *Reader) populatePlainEvent(m *Message) error {
	inner := bufio.NewReaderSize(strings.NewReader(m.Body), len(m.Body)+1)
	innerReader := &Reader{br: inner}

	eventHeaders, err := innerReader.readHeaderBlock()
	if err != nil {
		if err == io.EOF {
			// The body ended before a single complete header line (e.g.
			// an empty body): treat it as an event with no headers rather
			// than a hard parse failure. A header block cut off after one
			// or more complete lines fails with ErrUnexpectedEOF instead.
			m.eventHeaders = eventHeaders
			return nil
		}
		return err
	}

	msgBody, err := innerReader.readBody(eventHeaders)
	if err != nil {
		return err
	}

	m.eventHeaders = eventHeaders
	m.eventBody = msgBody
	return nil
}
