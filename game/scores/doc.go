// Package scores persists the best (lowest) move count per difficulty.
//
// Three backends implement engine.ScoreStore: MemoryStore for tests and
// throwaway servers, FileStore for a single JSON document keyed the same
// way the browser build keyed localStorage ("memory_best_easy"), and
// SQLiteStore for a durable table with embedded migrations.
//
// Stores only read and write; deciding whether a result beats the stored
// best is the engine's job.
package scores
