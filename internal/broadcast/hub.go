package broadcast

import (
	"context"
	"errors"
	"sync"

	"scribe/internal/api"
)

// ErrClosed is returned by Subscription.Next once the subscription has been
// detached and every queued event consumed.
var ErrClosed = errors.New("subscription closed")

// Subscription is one live consumer's registration for a job's progress
// events. The queue is unbounded so a slow consumer never causes event loss;
// consumers pull with Next.
type Subscription struct {
	jobID string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []api.ProgressEvent
	closed bool
}

// JobID returns the job this subscription follows.
func (s *Subscription) JobID() string {
	return s.jobID
}

// Next blocks until an event is available, the subscription is closed and
// drained, or the context ends.
func (s *Subscription) Next(ctx context.Context) (api.ProgressEvent, error) {
	cancelWait := make(chan struct{})
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.cond.Broadcast()
				s.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if len(s.queue) > 0 {
			event := s.queue[0]
			s.queue = s.queue[1:]
			return event, nil
		}
		if s.closed {
			return api.ProgressEvent{}, ErrClosed
		}
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return api.ProgressEvent{}, err
			}
		}
		s.cond.Wait()
	}
}

func (s *Subscription) push(event api.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, event)
	s.cond.Broadcast()
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cond.Broadcast()
}

// Hub fans progress events out to the live subscribers of each job. It keeps
// no history: an event published with no subscribers is discarded, and late
// joiners are expected to seed themselves from the durable job row.
type Hub struct {
	mu   sync.Mutex
	subs map[string][]*Subscription
}

// NewHub constructs an empty broadcast hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string][]*Subscription)}
}

// Subscribe registers a new subscription for a job id.
func (h *Hub) Subscribe(jobID string) *Subscription {
	sub := &Subscription{jobID: jobID}
	sub.cond = sync.NewCond(&sub.mu)

	h.mu.Lock()
	h.subs[jobID] = append(h.subs[jobID], sub)
	h.mu.Unlock()
	return sub
}

// Publish delivers an event to every current subscriber of the job. It never
// blocks on consumers: each subscription queues the event for its own reader.
func (h *Hub) Publish(jobID string, event api.ProgressEvent) {
	h.mu.Lock()
	subs := append([]*Subscription(nil), h.subs[jobID]...)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.push(event)
	}
}

// Unsubscribe detaches a single subscription, typically on consumer
// disconnect. The underlying job is unaffected.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	registered := h.subs[sub.jobID]
	for i, candidate := range registered {
		if candidate == sub {
			h.subs[sub.jobID] = append(registered[:i:i], registered[i+1:]...)
			break
		}
	}
	if len(h.subs[sub.jobID]) == 0 {
		delete(h.subs, sub.jobID)
	}
	h.mu.Unlock()

	sub.close()
}

// UnsubscribeAll detaches and closes every subscription for a job. The
// coordinator calls this exactly once when the job reaches a terminal state.
func (h *Hub) UnsubscribeAll(jobID string) {
	h.mu.Lock()
	subs := h.subs[jobID]
	delete(h.subs, jobID)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// SubscriberCount reports the number of live subscriptions for a job.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}
