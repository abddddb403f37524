package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/detent/pkg/domain"
)

// allSheets is the subscription key that receives every sheet's messages.
const allSheets = "*"

// Message kinds carried on lifecycle streams.
const (
	KindLifecycle = "lifecycle"
	KindState     = "state"
)

type message struct {
	kind    string
	sheetID string
	data    []byte
}

// StreamManager handles active SSE connections.
// Create it before the engine and register Hooks so lifecycle traffic reaches subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- message]struct{} // SheetID (or "*") -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- message]struct{}),
		logger:      logger,
	}
}

// Hooks feeds lifecycle events and state changes into the streams.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnEvent: func(_ context.Context, ev *domain.Event) {
			sm.publish(KindLifecycle, ev.SheetID, ev)
		},
		OnStateChange: func(_ context.Context, ch *domain.StateChange) {
			sm.publish(KindState, ch.SheetID, ch)
		},
	}
}

func (sm *StreamManager) publish(kind, sheetID string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		sm.logger.Error("StreamManager: marshal failed", "kind", kind, "error", err)
		return
	}
	sm.broadcast(message{kind: kind, sheetID: sheetID, data: data})
}

// subscribe registers a channel for one sheet, or every sheet when sheetID is empty.
func (sm *StreamManager) subscribe(sheetID string) (<-chan message, func()) {
	if sheetID == "" {
		sheetID = allSheets
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan message, 32)
	if _, ok := sm.subscribers[sheetID]; !ok {
		sm.subscribers[sheetID] = make(map[chan<- message]struct{})
	}
	sm.subscribers[sheetID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[sheetID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, sheetID)
				}
			}
		})
	}
}

// broadcast never blocks: slow clients lose messages.
func (sm *StreamManager) broadcast(msg message) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, key := range []string{msg.sheetID, allSheets} {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				sm.logger.Warn("SSE: Client buffer full, dropping message", "sheet_id", msg.sheetID, "kind", msg.kind)
			}
		}
	}
}
