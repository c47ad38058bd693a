package notifications

import (
	"sync"
	"time"
)

type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
)

// Message is a user-facing notice.
type Message struct {
	Seq   uint64    `json:"seq"`
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

const DefaultInboxSize = 50

// Inbox keeps the most recent messages in a fixed-size ring.
type Inbox struct {
	mu    sync.Mutex
	buf   []Message
	next  int
	full  bool
	seq   uint64
	now   func() time.Time
	relay *Sender
}

// NewInbox returns an inbox holding up to size messages. When relay is
// non-nil and enabled, every message is also forwarded to the webhook.
func NewInbox(size int, relay *Sender) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{buf: make([]Message, size), now: time.Now, relay: relay}
}

func (in *Inbox) Push(level Level, text string) Message {
	in.mu.Lock()
	in.seq++
	m := Message{Seq: in.seq, Level: level, Text: text, At: in.now()}
	in.buf[in.next] = m
	in.next = (in.next + 1) % len(in.buf)
	if in.next == 0 {
		in.full = true
	}
	relay := in.relay
	in.mu.Unlock()

	if relay != nil && relay.Enabled() {
		go relay.Send(string(level) + ": " + text)
	}
	return m
}

// Recent returns up to n messages, newest first. n <= 0 returns all.
func (in *Inbox) Recent(n int) []Message {
	in.mu.Lock()
	defer in.mu.Unlock()

	count := in.next
	if in.full {
		count = len(in.buf)
	}
	if n <= 0 || n > count {
		n = count
	}
	out := make([]Message, 0, n)
	for i := 1; i <= n; i++ {
		idx := (in.next - i + len(in.buf)) % len(in.buf)
		out = append(out, in.buf[idx])
	}
	return out
}

// Since returns messages with Seq greater than seq, oldest first.
func (in *Inbox) Since(seq uint64) []Message {
	recent := in.Recent(0)
	out := make([]Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Seq > seq {
			out = append(out, recent[i])
		}
	}
	return out
}

// Clear drops every message; sequence numbers keep increasing.
func (in *Inbox) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i := range in.buf {
		in.buf[i] = Message{}
	}
	in.next = 0
	in.full = false
}
