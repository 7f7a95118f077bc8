package codec

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Writer serializes single-line, multi-line and sendmsg commands onto an
// io.Writer, terminating each with a blank line (spec.md §4.B). It is the
// only path that may emit bytes on a connection's socket; callers share
// one Writer per connection and rely on its internal mutex to prevent
// interleaved frames (spec.md §3's writeMutex, §4.B).
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps an io.Writer (typically a net.Conn).
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteCommand writes a single-line command: "command\n\n".
func (w *Writer) WriteCommand(command string) error {
	return w.writeLocked(command + "\n\n")
}

// WriteMultiline writes a block of header-style lines terminated by a
// blank line, e.g. "auth <pw>\n\n" with any extra header lines appended
// before the terminator (spec.md §4.B's multi-line shape).
func (w *Writer) WriteMultiline(lines ...string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return w.writeLocked(b.String())
}

// WriteSendMsg writes a single SendMsg, terminated by a blank line.
func (w *Writer) WriteSendMsg(msg *SendMsg) error {
	return w.WriteSendMsgBatch(msg)
}

// WriteSendMsgBatch writes one or more SendMsg units separated by blank
// lines within the batch, with the whole batch still ending in a single
// "\n\n" terminator (spec.md §4.B).
func (w *Writer) WriteSendMsgBatch(msgs ...*SendMsg) error {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		if err := m.render(&b); err != nil {
			return err
		}
	}
	b.WriteString("\n")
	return w.writeLocked(b.String())
}

func (w *Writer) writeLocked(payload string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.w, payload); err != nil {
		return fmt.Errorf("codec: write: %w", err)
	}
	return nil
}

// Lock/Unlock expose the writer's mutex so job.ReplyQueue enqueues can
// happen in the same critical section as the write that produced them
// (spec.md §4.D's "enqueued... inside the same critical section that
// writes it" invariant). Callers must pair Lock with Unlock and should
// use WriteCommandLocked rather than calling WriteCommand while held.
func (w *Writer) Lock()   { w.mu.Lock() }
func (w *Writer) Unlock() { w.mu.Unlock() }

// WriteCommandLocked is WriteCommand without acquiring the mutex; the
// caller must already hold it via Lock.
func (w *Writer) WriteCommandLocked(command string) error {
	if _, err := io.WriteString(w.w, command+"\n\n"); err != nil {
		return fmt.Errorf("codec: write: %w", err)
	}
	return nil
}
