package status

import (
	"context"
	"sync"
	"time"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/logging"
)

const defaultOrphanTTL = 5 * time.Minute

// topic is the FIFO of progress messages for one request
type topic struct {
	messages   []string
	closed     bool
	subscribed bool
	notify     chan struct{}
	touched    time.Time
}

// wake signals a waiting subscriber that the topic changed
func (t *topic) wake(now time.Time) {
	close(t.notify)
	t.notify = make(chan struct{})
	t.touched = now
}

// Hub routes progress messages to at most one subscriber per request ID.
// Messages published before the subscriber attaches are buffered; a topic
// is dropped once closed and drained, or after orphanTTL without a reader.
// Drained IDs are remembered for orphanTTL so a late subscriber gets DONE.
type Hub struct {
	mu        sync.Mutex
	topics    map[string]*topic
	finished  map[string]time.Time
	orphanTTL time.Duration
	logger    logging.Logger
	now       func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub and starts its orphan sweeper
func NewHub(orphanTTL time.Duration, logger logging.Logger) *Hub {
	if orphanTTL <= 0 {
		orphanTTL = defaultOrphanTTL
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	h := &Hub{
		topics:    make(map[string]*topic),
		finished:  make(map[string]time.Time),
		orphanTTL: orphanTTL,
		logger:    logger,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	go h.sweep()

	return h
}

// Publish appends message to the request's stream. Publishing to a closed
// stream starts a new one under the same ID; a reader still draining the old
// stream keeps it until its DONE.
func (h *Hub) Publish(requestID, message string) {
	if requestID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[requestID]
	if !ok || t.closed {
		if ok {
			h.logger.WithField("request_id", requestID).Debug("request ID reused, starting new status stream")
		}
		t = h.newTopicLocked(requestID)
	}
	delete(h.finished, requestID)
	t.messages = append(t.messages, message)
	t.wake(h.now())
}

// Close ends the request's stream with a final DONE message
func (h *Hub) Close(requestID string) {
	if requestID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.closeLocked(h.topicLocked(requestID))
}

// Subscribe returns the request's messages in publish order. The channel is
// closed after DONE has been delivered, or when ctx is cancelled; in the
// latter case undelivered messages stay buffered for a later subscriber.
func (h *Hub) Subscribe(ctx context.Context, requestID string) (<-chan string, error) {
	if requestID == "" {
		return nil, domain.ErrInvalidRequest
	}

	h.mu.Lock()
	t, ok := h.topics[requestID]
	if !ok {
		t = h.newTopicLocked(requestID)
		if _, done := h.finished[requestID]; done {
			h.closeLocked(t)
		}
	}
	if t.subscribed {
		h.mu.Unlock()
		return nil, domain.ErrSubscriberExists
	}
	t.subscribed = true
	t.touched = h.now()
	h.mu.Unlock()

	out := make(chan string)
	go h.pump(ctx, requestID, t, out)

	return out, nil
}

// ActiveStreams returns the number of topics with an attached subscriber
func (h *Hub) ActiveStreams() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, t := range h.topics {
		if t.subscribed {
			n++
		}
	}
	return n
}

// Stop closes every open stream and stops the sweeper
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)

		h.mu.Lock()
		defer h.mu.Unlock()
		for _, t := range h.topics {
			h.closeLocked(t)
		}
	})
}

func (h *Hub) pump(ctx context.Context, requestID string, t *topic, out chan<- string) {
	defer close(out)

	for {
		h.mu.Lock()
		pending := t.messages
		t.messages = nil
		closed := t.closed
		notify := t.notify
		if closed && len(pending) == 0 {
			if h.topics[requestID] == t {
				delete(h.topics, requestID)
				h.finished[requestID] = h.now()
			}
			h.mu.Unlock()
			return
		}
		h.mu.Unlock()

		for i, msg := range pending {
			select {
			case out <- msg:
			case <-ctx.Done():
				h.release(t, pending[i:])
				return
			}
		}
		if len(pending) > 0 {
			continue
		}

		select {
		case <-notify:
		case <-ctx.Done():
			h.release(t, nil)
			return
		}
	}
}

// release detaches the subscriber and puts undelivered messages back at the
// front of the queue
func (h *Hub) release(t *topic, undelivered []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(undelivered) > 0 {
		t.messages = append(append([]string(nil), undelivered...), t.messages...)
	}
	t.subscribed = false
	t.touched = h.now()
}

func (h *Hub) topicLocked(requestID string) *topic {
	if t, ok := h.topics[requestID]; ok {
		return t
	}
	return h.newTopicLocked(requestID)
}

func (h *Hub) newTopicLocked(requestID string) *topic {
	t := &topic{notify: make(chan struct{}), touched: h.now()}
	h.topics[requestID] = t
	return t
}

func (h *Hub) closeLocked(t *topic) {
	if t.closed {
		return
	}
	t.messages = append(t.messages, domain.StatusDone)
	t.closed = true
	t.wake(h.now())
}

// sweep drops topics nobody has read for orphanTTL and ends streams that
// have been idle for as long
func (h *Hub) sweep() {
	interval := h.orphanTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.removeOrphans(h.now())
		}
	}
}

func (h *Hub) removeOrphans(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed, expired := 0, 0
	for id, t := range h.topics {
		if now.Sub(t.touched) <= h.orphanTTL {
			continue
		}
		switch {
		case !t.subscribed:
			delete(h.topics, id)
			removed++
		case !t.closed:
			// A reader waiting on a request that never publishes
			h.closeLocked(t)
			expired++
		}
	}
	for id, at := range h.finished {
		if now.Sub(at) > h.orphanTTL {
			delete(h.finished, id)
		}
	}
	if removed > 0 || expired > 0 {
		h.logger.WithFields(logging.Fields{
			"removed": removed,
			"expired": expired,
		}).Debug("swept status streams")
	}
	return removed
}
