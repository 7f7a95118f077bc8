package codec

import (
	"encoding/xml"
	"strings"
)

// xmlEvent mirrors the shape FreeSWITCH emits for text/event-xml: a root
// element (commonly <event>) with a <headers> child whose own children
// are one element per header, named after the header and holding its
// value as character data. No pack example parses this format (spec.md
// §4.A.4 notes implementations "may parse XML or ignore"); this is
// grounded directly on the spec's description of the shape.
type xmlEvent struct {
	Headers xmlHeaders `xml:"headers"`
}

type xmlHeaders struct {
	Raw []byte `xml:",innerxml"`
}

// parseXMLEventHeaders decodes a text/event-xml body into an ordered
// Headers block. Malformed or unrecognized XML degrades to an empty
// header set rather than a fatal error, matching the warn-and-continue
// posture spec.md §4.A.4 takes toward XML events in general.
func parseXMLEventHeaders(body string) (*Headers, error) {
	var ev xmlEvent
	if err := xml.Unmarshal([]byte(body), &ev); err != nil {
		return NewHeaders(), nil
	}
	return decodeInnerElements(ev.Headers.Raw)
}

// decodeInnerElements walks the flat list of child elements inside
// <headers>...</headers> and turns each <Header-Name>value</Header-Name>
// element into a header, preserving document order.
func decodeInnerElements(inner []byte) (*Headers, error) {
	h := NewHeaders()
	dec := xml.NewDecoder(strings.NewReader("<root>" + string(inner) + "</root>"))
	var currentName string
	var pendingChars strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				currentName = t.Name.Local
				pendingChars.Reset()
			}
		case xml.CharData:
			if depth == 2 {
				pendingChars.Write(t)
			}
		case xml.EndElement:
			if depth == 2 && currentName != "" {
				h.Set(currentName, pendingChars.String())
				currentName = ""
			}
			depth--
		}
	}
	return h, nil
}
