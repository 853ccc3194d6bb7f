// Package outbox queues outbound SMS and email messages and delivers them
// from a worker pool with retries, away from the request path.
package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrQueueClosed is returned by Dequeue after Close
	ErrQueueClosed = errors.New("outbox queue closed")
	// ErrQueueFull is returned when a bounded queue has no free slot
	ErrQueueFull = errors.New("outbox queue full")
)

// Channel is an outbound delivery channel
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Message is one outbound delivery
type Message struct {
	ID         string    `json:"id"`
	Channel    Channel   `json:"channel"`
	To         string    `json:"to"`
	ToName     string    `json:"toName,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Body       string    `json:"body"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// NewMessage builds a message with a fresh ID
func NewMessage(channel Channel, to, toName, subject, body string) Message {
	return Message{
		ID:         uuid.NewString(),
		Channel:    channel,
		To:         to,
		ToName:     toName,
		Subject:    subject,
		Body:       body,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Queue is a FIFO of outbound messages
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
	// Dequeue blocks until a message is available or ctx is done
	Dequeue(ctx context.Context) (Message, error)
	Close() error
}

// MemoryQueue is a bounded in-process queue. Messages are lost on restart.
type MemoryQueue struct {
	ch        chan Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue creates an in-memory queue holding up to size messages
func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		ch:   make(chan Message, size),
		done: make(chan struct{}),
	}
}

// Enqueue never waits for a free slot; a full queue returns ErrQueueFull.
func (q *MemoryQueue) Enqueue(ctx context.Context, msg Message) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Message, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-q.done:
		return Message{}, ErrQueueClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
