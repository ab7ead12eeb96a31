// Package websocket provides WebSocket push for the memory game.
//
// The websocket package implements:
//   - Session-aware WebSocket subscriptions
//   - Fan-out of service events (render, status, win, tick, dashboard)
//   - Connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is handled by a read and a
// write goroutine; the hub goroutine owns the subscription map.
//
// Message Protocol:
//
// Every frame is one JSON-encoded service.Event:
//
//	{"type": "render", "session_id": "ab12", "data": {...}, "timestamp": "..."}
//
// Face-down card values never appear in render data. Clients do not send
// commands over the socket; moves go through the REST API.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	svc := service.NewGameService(sessions, configs, service.WithNotifier(hub))
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//
// Publish never blocks: events for a saturated hub are dropped, and a client
// whose queue is full is disconnected.
package websocket
