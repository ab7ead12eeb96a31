// Package config provides configuration management for the memory game server.
//
// The config package handles:
//   - Loading named game configurations from JSON files
//   - Validation through engine.ValidateGameConfig
//   - Default configuration selection and caching
//   - Process settings from MEMORY_GAME_* environment variables
//
// Configuration Format:
//
// Game configurations are JSON files in the configs directory. The file name
// without .json is the config id used when creating sessions. Each file holds
// the card alphabet, the mismatch flip-back delay, the status and win
// messages, and the dashboard tuning.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameConfig, err := manager.LoadConfig("lithuanian")
//	defaultConfig := manager.GetDefault()
//	configs, err := manager.ListConfigs()
package config
