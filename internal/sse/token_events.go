package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"ms-dispatch/internal/models"
)

// TokenEventEmitter manages SSE connections and event broadcasting for the
// live token board. Office screens subscribe to everything; an operator's
// own terminal can subscribe to just their tokens.
type TokenEventEmitter struct {
	// Per-operator channel clients map - key: operatorID, value: slice of client channels
	operatorClients     map[string][]chan models.TokenEvent
	operatorClientMutex sync.RWMutex

	// Clients subscribed to every token event
	allClients     []chan models.TokenEvent
	allClientMutex sync.RWMutex
}

// NewTokenEventEmitter creates a new SSE event emitter for token events
func NewTokenEventEmitter() *TokenEventEmitter {
	return &TokenEventEmitter{
		operatorClients: make(map[string][]chan models.TokenEvent),
	}
}

// SubscribeToOperator adds a client to one operator's token events
func (e *TokenEventEmitter) SubscribeToOperator(ctx context.Context, operatorID string) chan models.TokenEvent {
	clientChan := make(chan models.TokenEvent, 10)

	e.operatorClientMutex.Lock()
	e.operatorClients[operatorID] = append(e.operatorClients[operatorID], clientChan)
	e.operatorClientMutex.Unlock()

	// Remove client when context is done
	go func() {
		<-ctx.Done()
		e.removeOperatorClient(operatorID, clientChan)
	}()

	return clientChan
}

// SubscribeToAll adds a client to every token event
func (e *TokenEventEmitter) SubscribeToAll(ctx context.Context) chan models.TokenEvent {
	clientChan := make(chan models.TokenEvent, 10)

	e.allClientMutex.Lock()
	e.allClients = append(e.allClients, clientChan)
	e.allClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeAllClient(clientChan)
	}()

	return clientChan
}

// EmitTokenEvent broadcasts a token event to all subscribed clients
func (e *TokenEventEmitter) EmitTokenEvent(event models.TokenEvent) {
	e.operatorClientMutex.RLock()
	clients := e.operatorClients[event.OperatorID]
	e.operatorClientMutex.RUnlock()

	for _, clientChan := range clients {
		// Non-blocking send to avoid slowing down emitter if client is slow
		select {
		case clientChan <- event:
		default:
			// Channel buffer full, skip this client for now
		}
	}

	e.allClientMutex.RLock()
	allClients := e.allClients
	e.allClientMutex.RUnlock()

	for _, clientChan := range allClients {
		select {
		case clientChan <- event:
		default:
		}
	}
}

// StreamHandler serves the SSE feed. With an operator_id query parameter the
// stream carries only that operator's events, otherwise everything.
func (e *TokenEventEmitter) StreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var events chan models.TokenEvent
	if operatorID := r.URL.Query().Get("operator_id"); operatorID != "" {
		events = e.SubscribeToOperator(r.Context(), operatorID)
	} else {
		events = e.SubscribeToAll(r.Context())
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Action, data)
			flusher.Flush()
		}
	}
}

// Helper methods to remove clients when they disconnect
func (e *TokenEventEmitter) removeOperatorClient(operatorID string, clientChan chan models.TokenEvent) {
	e.operatorClientMutex.Lock()
	defer e.operatorClientMutex.Unlock()

	clients := e.operatorClients[operatorID]
	for i, ch := range clients {
		if ch == clientChan {
			e.operatorClients[operatorID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	// Clean up map entry if no more clients
	if len(e.operatorClients[operatorID]) == 0 {
		delete(e.operatorClients, operatorID)
	}
}

func (e *TokenEventEmitter) removeAllClient(clientChan chan models.TokenEvent) {
	e.allClientMutex.Lock()
	defer e.allClientMutex.Unlock()

	for i, ch := range e.allClients {
		if ch == clientChan {
			e.allClients = append(e.allClients[:i], e.allClients[i+1:]...)
			close(clientChan)
			break
		}
	}
}

// GetOperatorClientCount returns the number of clients currently subscribed to an operator
func (e *TokenEventEmitter) GetOperatorClientCount(operatorID string) int {
	e.operatorClientMutex.RLock()
	defer e.operatorClientMutex.RUnlock()
	return len(e.operatorClients[operatorID])
}
