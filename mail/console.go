package mail

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ConsoleSender writes each message to w instead of delivering it.
type ConsoleSender struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleSender(w io.Writer) *ConsoleSender {
	return &ConsoleSender{w: w}
}

func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w,
		"From: %s\nTo: %s\nSubject: %s\n\n%s\n%s\n",
		msg.From, strings.Join(msg.To, ", "), msg.Subject, msg.Body, strings.Repeat("-", 72))
	return err
}

// MemorySender records messages in memory.
type MemorySender struct {
	mu   sync.Mutex
	sent []Message
}

func (s *MemorySender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of every message recorded so far.
func (s *MemorySender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
