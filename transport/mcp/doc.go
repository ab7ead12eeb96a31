// Package mcp provides the Model Context Protocol interface for the memory game.
//
// The mcp package implements:
//   - A thin MCP client that proxies every tool to the REST API
//   - Tool definitions for sessions, rounds, best scores, the dashboard and the contact form
//   - Text renderings of the board and dashboard for AI agents
//
// MCP Tools:
//   - create_session, get_session, list_sessions, delete_session
//   - start_round, reveal_card, restart_round, round_state
//   - best_scores, reset_best_score
//   - dashboard_state, dashboard_command
//   - validate_contact, submit_contact
//   - list_configs, game_instructions
//
// Boards are rendered as a grid of [id value] cells. Face-down cards show
// only their id, so an agent has to remember what it has already seen.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//
//	// Stdio mode
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	http.Handle("/mcp", server.NewStreamableHTTPServer(client.GetMCPServer()))
package mcp
