package codec

import (
	"net/url"
	"strings"
)

// Headers is an order-preserving, lazily URL-decoded header block, per
// SPEC_FULL.md §4.A. It replaces the teacher's fixed-size positional
// array (eventsocket/constants.go's MapKeyIndex/FsEventMapSize), which
// cannot hold arbitrary custom headers without index collisions.
type Headers struct {
	keys    []string
	raw     map[string]string
	decoded map[string]string
}

// NewHeaders returns an empty, ready-to-use Headers block.
func NewHeaders() *Headers {
	return &Headers{raw: make(map[string]string)}
}

// Set appends or overwrites a header, preserving first-seen insertion
// order. Duplicate header names are not expected on the wire (spec.md
// §3); a repeated Set overwrites the value in place without reordering.
func (h *Headers) Set(name, value string) {
	canon := capitalizeHeader(name)
	if _, ok := h.raw[canon]; !ok {
		h.keys = append(h.keys, canon)
	}
	h.raw[canon] = value
	if h.decoded != nil {
		delete(h.decoded, canon)
	}
}

// GetRaw returns the header's undecoded wire value.
func (h *Headers) GetRaw(name string) (string, bool) {
	v, ok := h.raw[capitalizeHeader(name)]
	return v, ok
}

// Get returns the header value, URL-decoding it on first access and
// caching the decoded form (spec.md §9: "decode on read, not on parse").
// If decoding fails the raw value is returned and cached as-is, matching
// the teacher's fallback in copyHeaders.
func (h *Headers) Get(name string) string {
	canon := capitalizeHeader(name)
	if h.decoded != nil {
		if v, ok := h.decoded[canon]; ok {
			return v
		}
	}
	raw, ok := h.raw[canon]
	if !ok {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	if h.decoded == nil {
		h.decoded = make(map[string]string, len(h.raw))
	}
	h.decoded[canon] = decoded
	return decoded
}

// Has reports whether name was present on the wire.
func (h *Headers) Has(name string) bool {
	_, ok := h.raw[capitalizeHeader(name)]
	return ok
}

// Keys returns header names in wire insertion order.
func (h *Headers) Keys() []string {
	out := make([]string, len(h.keys))
	copy(out, h.keys)
	return out
}

// Len reports the number of headers.
func (h *Headers) Len() int { return len(h.keys) }

// capitalizeHeader normalizes FreeSWITCH's inconsistent header casing the
// way the teacher's capitalize function does: "Job-UUID" becomes
// "Job-Uuid", "variable_sip_call_id" becomes "Variable_sip_call_id", and
// headers starting with "_" are passed through untouched.
func capitalizeHeader(s string) string {
	if s == "" {
		return s
	}
	if s[0] == '_' {
		return s
	}
	lower := strings.ToLower(s)
	if len(lower) > 9 && lower[1:9] == "ariable_" {
		return "V" + lower[1:]
	}
	b := []byte(lower)
	toUpper := true
	for i, c := range b {
		if toUpper {
			if 'a' <= c && c <= 'z' {
				b[i] = c - ('a' - 'A')
			}
			toUpper = false
		} else if c == '-' || c == '_' {
			toUpper = true
		}
	}
	return string(b)
}
