// Package api provides HTTP REST API handlers for the memory game.
//
// The api package implements:
//   - Session management endpoints
//   - Round endpoints (start, reveal, restart)
//   - Shared best scores
//   - The dashboard panel of each session
//   - Contact form validation and submission
//   - Configuration listing and creation
//   - WebSocket upgrade handling
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create new session {config_id, difficulty}
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Delete session
//
// Rounds:
//   - GET /api/sessions/{id}/round - Current round
//   - POST /api/sessions/{id}/round/start - Deal a new board {difficulty: easy|hard}
//   - POST /api/sessions/{id}/round/reveal - Flip a card {card_id}
//   - POST /api/sessions/{id}/round/restart - Clear the board
//
// Best Scores:
//   - GET /api/best-scores - Best score per difficulty
//   - DELETE /api/best-scores/{difficulty} - Forget a record
//
// Dashboard:
//   - GET /api/sessions/{id}/dashboard - Gauges and event log
//   - POST /api/sessions/{id}/dashboard/commands - {action: ignition|throttle|start|stop|estop|shift, on, throttle, gear}
//
// Contact Form:
//   - POST /api/contact/validate - Per-field messages
//   - POST /api/contact/submit - Summary and average rating (422 with field errors when invalid)
//   - GET /api/contact/phone?raw=... - Progressive "+370 6xx xxxxx" formatting
//
// Configuration:
//   - GET /api/configs - List available configurations
//   - POST /api/configs - Save a configuration
//   - GET /api/configs/{name} - Get a configuration
//
// Push:
//   - GET /ws?session={id} - WebSocket stream of render, status, win, tick and dashboard events
//
// Card values are only present for face-up or matched cards. A reveal that
// the rules ignore still answers 200 with outcome "ignored" and a reason.
//
// Usage:
//
//	srv := api.NewServer(gameService, hub)
//	http.ListenAndServe(":8080", srv)
//
// Error Handling:
//
// Errors are returned as JSON with an appropriate HTTP status code: 404 for
// unknown sessions and configs, 400 for bad input, 500 otherwise.
//
//	{
//	  "error": "error message"
//	}
package api
