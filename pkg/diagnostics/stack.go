package diagnostics

import (
	"fmt"
	"strings"
	"sync"
)

// Stack collects human-readable status and error messages produced while a
// graph is built or searched. Messages are popped in LIFO order.
//
// A Stack is safe for concurrent use.
type Stack struct {
	mu       sync.Mutex
	messages []string
}

// NewStack creates an empty diagnostics stack
func NewStack() *Stack {
	return &Stack{}
}

// Push adds a message to the top of the stack
func (s *Stack) Push(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
}

// Pushf formats a message and pushes it
func (s *Stack) Pushf(format string, args ...any) {
	s.Push(fmt.Sprintf(format, args...))
}

// Pop removes and returns the most recent message.
// The second return value is false when the stack is empty.
func (s *Stack) Pop() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) == 0 {
		return "", false
	}
	last := len(s.messages) - 1
	msg := s.messages[last]
	s.messages[last] = ""
	s.messages = s.messages[:last]
	return msg, true
}

// Count returns the number of pending messages
func (s *Stack) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Drain pops every message until the stack is empty and returns them in pop order
func (s *Stack) Drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.messages))
	for i := len(s.messages) - 1; i >= 0; i-- {
		out = append(out, s.messages[i])
	}
	s.messages = nil
	return out
}

// DrainString drains the stack and joins the messages with newlines,
// which is how front ends present accumulated diagnostics.
func (s *Stack) DrainString() string {
	return strings.Join(s.Drain(), "\n")
}

// Reset discards all pending messages
func (s *Stack) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
