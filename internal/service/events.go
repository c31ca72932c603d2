package service

import (
	"sync"

	"convq/internal/domain"
)

type EventType string

const (
	EventJobAdded          EventType = "job_added"
	EventJobRemoved        EventType = "job_removed"
	EventConversionStarted EventType = "conversion_started"
	EventProgressUpdated   EventType = "progress_updated"
	EventJobFinished       EventType = "job_finished"
	EventAllJobsFinished   EventType = "all_jobs_finished"
)

// Notification is one typed event emitted by the orchestrator. Only the
// fields relevant to the event type are populated.
type Notification struct {
	Type       EventType                    `json:"type"`
	Job        *domain.Job                  `json:"job,omitempty"`
	Index      int                          `json:"index"`
	JobID      int64                        `json:"job_id"`
	Percentage int                          `json:"percentage"`
	ExitStatus int                          `json:"exit_status"`
	Params     *domain.ConversionParameters `json:"params,omitempty"`
}

// NotificationPublisher is the outbound side of the bus as seen by the
// orchestrator.
type NotificationPublisher interface {
	Publish(n Notification)
}

// Bus fans notifications out to subscribers. Publishing never blocks: a
// subscriber that cannot keep up loses events.
type Bus struct {
	mu   sync.RWMutex
	subs []chan Notification
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe() chan Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Notification, 16)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Unsubscribe(ch chan Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			break
		}
	}
}

func (b *Bus) Publish(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
			// Drop event if subscriber is slow
		}
	}
}

var _ NotificationPublisher = (*Bus)(nil)
