// Package telemetry delivers position samples for sheets in motion.
//
// Delivery is best-effort: every sheet has a bounded ingress drained by a
// single consumer goroutine, and every subscriber has a bounded buffer.
// Publishing never blocks. When a buffer is full the oldest sample is
// discarded in favor of the newest, so a slow consumer sees a coalesced
// stream that still ends with the latest position.
package telemetry

import (
	"log/slog"
	"sync"

	"github.com/aretw0/detent/internal/logging"
	"github.com/aretw0/detent/pkg/domain"
)

const (
	DefaultIngressSize    = 64
	DefaultSubscriberSize = 16
)

// DropFunc is notified whenever a sample is discarded.
type DropFunc func(sheetID string)

// Hub owns one Stream per mounted sheet.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]*Stream

	ingressSize    int
	subscriberSize int
	onDrop         DropFunc
	logger         *slog.Logger
}

// Option configures the Hub.
type Option func(*Hub)

// WithBufferSizes overrides ingress and per-subscriber capacities.
func WithBufferSizes(ingress, subscriber int) Option {
	return func(h *Hub) {
		if ingress > 0 {
			h.ingressSize = ingress
		}
		if subscriber > 0 {
			h.subscriberSize = subscriber
		}
	}
}

// WithDropHandler registers a callback for discarded samples.
func WithDropHandler(fn DropFunc) Option {
	return func(h *Hub) {
		h.onDrop = fn
	}
}

// WithLogger configures a logger for the Hub.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates an empty Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		streams:        make(map[string]*Stream),
		ingressSize:    DefaultIngressSize,
		subscriberSize: DefaultSubscriberSize,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Open starts the stream for a sheet. Opening twice returns the existing stream.
func (h *Hub) Open(sheetID string) *Stream {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.streams[sheetID]; ok {
		return s
	}
	s := newStream(sheetID, h.ingressSize, h.subscriberSize, h.drop)
	h.streams[sheetID] = s
	go s.run()
	return s
}

// Close stops the stream and closes every subscriber channel.
func (h *Hub) Close(sheetID string) {
	h.mu.Lock()
	s, ok := h.streams[sheetID]
	delete(h.streams, sheetID)
	h.mu.Unlock()

	if ok {
		s.close()
	}
}

// Publish offers a sample without blocking. It reports whether the sample was accepted.
func (h *Hub) Publish(sheetID string, sample domain.PositionSample) bool {
	h.mu.RLock()
	s, ok := h.streams[sheetID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return s.Publish(sample)
}

// Subscribe returns a channel of samples for a sheet and a cancel function.
func (h *Hub) Subscribe(sheetID string) (<-chan domain.PositionSample, func(), error) {
	h.mu.RLock()
	s, ok := h.streams[sheetID]
	h.mu.RUnlock()
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	ch, cancel := s.Subscribe()
	return ch, cancel, nil
}

func (h *Hub) drop(sheetID string) {
	h.logger.Debug("telemetry sample dropped", "sheet_id", sheetID)
	if h.onDrop != nil {
		h.onDrop(sheetID)
	}
}

// Stream is the per-sheet single-consumer pipeline.
type Stream struct {
	sheetID string
	ingress chan domain.PositionSample

	mu     sync.RWMutex
	closed bool
	subs   map[chan domain.PositionSample]struct{}

	subscriberSize int
	drop           func(string)
	done           chan struct{}
}

func newStream(sheetID string, ingressSize, subscriberSize int, drop func(string)) *Stream {
	return &Stream{
		sheetID:        sheetID,
		ingress:        make(chan domain.PositionSample, ingressSize),
		subs:           make(map[chan domain.PositionSample]struct{}),
		subscriberSize: subscriberSize,
		drop:           drop,
		done:           make(chan struct{}),
	}
}

// Publish enqueues a sample. When the ingress is full the oldest queued
// sample is evicted to make room.
func (s *Stream) Publish(sample domain.PositionSample) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}

	select {
	case s.ingress <- sample:
		return true
	default:
	}

	select {
	case <-s.ingress:
		s.drop(s.sheetID)
	default:
	}
	select {
	case s.ingress <- sample:
		return true
	default:
		s.drop(s.sheetID)
		return false
	}
}

// Subscribe registers a new consumer.
func (s *Stream) Subscribe() (<-chan domain.PositionSample, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan domain.PositionSample, s.subscriberSize)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
}

// Done is closed once the consumer goroutine has exited.
func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) run() {
	defer close(s.done)
	for sample := range s.ingress {
		s.fanOut(sample)
	}

	s.mu.Lock()
	for ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.mu.Unlock()
}

func (s *Stream) fanOut(sample domain.PositionSample) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subs {
		select {
		case ch <- sample:
			continue
		default:
		}
		// Coalesce: discard the oldest buffered sample and retry once.
		select {
		case <-ch:
			s.drop(s.sheetID)
		default:
		}
		select {
		case ch <- sample:
		default:
			s.drop(s.sheetID)
		}
	}
}

func (s *Stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ingress)
}
