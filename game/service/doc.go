// Package service provides the business logic layer for the memory game.
//
// The service package implements:
//   - Multi-session round management
//   - Shared best scores per difficulty
//   - The dashboard panel of each session
//   - Contact form validation and submission
//   - Configuration listing, loading and saving
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages game configuration loading and validation.
// Notifier receives the events pushed to subscribers of a session.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the game engine. Each session owns its own engine and dashboard panel; all
// engines share one score store. Views returned to callers never carry the
// value of a face-down card.
//
// Usage:
//
//	scores, _ := scores.Open("file", "data/best_scores.json")
//	sessionMgr := session.NewManager()
//	sessionMgr.SetEngineFactory(service.NewEngineFactory(scores, hub))
//	configMgr := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr,
//		service.WithScoreStore(scores), service.WithNotifier(hub))
//
//	info, err := gameService.CreateSession(ctx, "classic", "easy")
//	if err != nil {
//		log.Fatal(err)
//	}
//	res, err := gameService.RevealCard(ctx, info.ID, info.Round.Cards[0].ID)
//
// Every operation opens an OpenTelemetry span named after it.
package service
