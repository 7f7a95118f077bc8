package codec

import (
	"fmt"
	"strings"
)

// SendMsg is a set of dialplan execute lines for the "sendmsg" command
// (spec.md §3). Keys with empty values are ignored on write, matching
// the teacher's MSG map semantics (eventsocket.go's SendMsg).
type SendMsg struct {
	UUID    string
	Lines   []KV
	AppData string
}

// KV is an ordered header line for SendMsg; a plain map would lose the
// order FreeSWITCH expects "call-command" and friends to appear in.
type KV struct {
	Key   string
	Value string
}

// NewSendMsg starts a SendMsg for the given channel UUID (empty for
// outbound-mode sockets, which operate on the socket's own channel).
func NewSendMsg(uuid string) *SendMsg {
	return &SendMsg{UUID: uuid}
}

// Set appends a header line. Safe to call with an empty value; it will
// be dropped at serialization time, matching the teacher's behavior.
func (s *SendMsg) Set(key, value string) *SendMsg {
	s.Lines = append(s.Lines, KV{Key: key, Value: value})
	return s
}

// Execute is a shortcut for the common "call-command: execute" shape,
// grounded on eventsocket.go's Execute/ExecuteUUID helpers.
func Execute(uuid, appName, appArg string, lock bool) *SendMsg {
	s := NewSendMsg(uuid)
	s.Set("call-command", "execute")
	s.Set("execute-app-name", appName)
	s.Set("execute-app-arg", appArg)
	if lock {
		s.Set("event-lock", "true")
	}
	return s
}

func (s *SendMsg) validate() error {
	if strings.ContainsAny(s.UUID, "\r\n") {
		return fmt.Errorf("codec: sendmsg uuid contains control characters")
	}
	for _, kv := range s.Lines {
		if strings.ContainsAny(kv.Key, "\r\n") || strings.ContainsAny(kv.Value, "\r\n") {
			return fmt.Errorf("codec: sendmsg header %q contains control characters", kv.Key)
		}
	}
	return nil
}

// render writes this SendMsg's lines (without the trailing command
// terminator) into b.
func (s *SendMsg) render(b *strings.Builder) error {
	if err := s.validate(); err != nil {
		return err
	}
	b.WriteString("sendmsg")
	if s.UUID != "" {
		b.WriteString(" ")
		b.WriteString(s.UUID)
	}
	b.WriteString("\n")
	var contentLength string
	for _, kv := range s.Lines {
		if kv.Value == "" {
			continue
		}
		if strings.EqualFold(kv.Key, "content-length") {
			contentLength = kv.Value
		}
		fmt.Fprintf(b, "%s: %s\n", kv.Key, kv.Value)
	}
	if contentLength != "" && s.AppData != "" {
		b.WriteString(s.AppData)
	}
	return nil
}
