package mock

import (
	"context"
	"sync"
)

type Message struct {
	Address string
	Subject string
	Body    string
}

// Notifier records messages instead of sending them.
type Notifier struct {
	mu       sync.RWMutex
	messages []Message
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Notify(_ context.Context, address, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, Message{Address: address, Subject: subject, Body: body})
	return nil
}

func (n *Notifier) Messages() []Message {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]Message(nil), n.messages...)
}
