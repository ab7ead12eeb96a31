// Package session keeps the live memory game sessions of a server process.
//
// A Manager maps 4-character hex IDs to service.Session values, each owning
// one engine, one dashboard panel and the config it was created with.
// Engines come from a service.EngineFactory, so all sessions share one best
// score store and one event notifier.
//
// Persistence:
//
// With a SessionPersistence attached, every created session and every saved
// change is written as one JSON file holding the round and dashboard state.
// Get falls back to disk for sessions that are not in memory, and
// LoadPersistedSessions restores them all at startup. A session whose config
// no longer exists is rebuilt with the default config. A round saved while a
// mismatch was pending comes back with the two cards already turned face
// down.
//
// Expiry:
//
// CleanupExpiredSessions evicts idle sessions from memory only; their files
// stay and are loaded again on the next Get. Delete removes both.
//
// Usage:
//
//	manager := session.NewManagerWithPersistence(persistence, configs)
//	manager.SetEngineFactory(service.NewEngineFactory(store, hub))
//
//	sess, err := manager.Create("", "classic", config)
//	if err != nil {
//		return err
//	}
//	sess, err = manager.Get(sess.ID)
//
// IDs are matched case-insensitively.
package session
