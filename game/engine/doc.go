// Package engine provides the core logic of the memory matching game.
//
// The engine package implements:
//   - Dealing a shuffled board of symbol pairs for a difficulty
//   - Revealing cards, pair evaluation and move counting
//   - The mismatch resolution lock with a cancellable delayed flip-back
//   - Win detection and best-score bookkeeping through a ScoreStore
//   - Configuration loading and validation
//
// Core Types:
//
// The Engine interface defines the main contract for game operations,
// implemented by GameEngine. Round holds the state of one play-through,
// while GameConfig carries the alphabet, delays and messages loaded from
// JSON files.
//
// Usage:
//
//	eng, err := engine.NewEngine(engine.DefaultConfig(),
//		engine.WithScoreStore(scores.NewMemoryStore()))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	round, _ := eng.StartRound(engine.Easy)
//	result := eng.RevealCard(round.Cards[0].ID)
//
// Game Rules:
//
// Cards start face down. Revealing two cards counts one move; equal values
// stay matched, different values are turned back after a short delay during
// which further reveals are ignored. The round is won when every pair is
// matched, and the best (lowest) move count per difficulty is kept.
package engine
