// Command validate provides a small CLI that validates memory game
// configuration JSON files. It checks:
//   - JSON structure, rejecting unknown fields
//   - The rules enforced when a config is loaded (alphabet, delays, messages, dashboard tuning)
//   - That every difficulty can be dealt from the alphabet
//   - Optional messages that fall back to built-in defaults
//
// The directory defaults to ../configs and can be given as the first argument.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/memorygame/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration JSON file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var config engine.GameConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&config); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	delaySet := config.MismatchDelayMS != 0
	config.ApplyDefaults()
	if err := engine.ValidateGameConfig(&config); err != nil {
		result.fail("%s", strings.TrimPrefix(err.Error(), "config validation: "))
	}

	for _, d := range engine.Difficulties {
		layout := engine.Layouts[d]
		if layout.Pairs > len(config.Alphabet) {
			result.fail("Difficulty %s needs %d symbols, alphabet has %d", d, layout.Pairs, len(config.Alphabet))
		}
	}

	if !result.Valid {
		return result
	}

	result.info("Name: %s", config.Name)
	result.info("Alphabet: %d symbols", len(config.Alphabet))
	for _, d := range engine.Difficulties {
		layout := engine.Layouts[d]
		result.info("%s: %d pairs on %dx%d", d, layout.Pairs, layout.Columns, layout.Rows)
	}
	result.info("Mismatch delay: %dms", config.MismatchDelayMS)
	tuning := config.Dashboard.WithDefaults()
	result.info("Dashboard: %dms tick, smoothing %.2f, %g-%g rpm", tuning.TickMS, tuning.Smoothing, tuning.IdleRPM, tuning.MaxRPM)

	if !delaySet {
		result.info("mismatch_delay_ms not set, default is used")
	}
	if config.Messages.Welcome == "" {
		result.info("messages.welcome not set, default is used")
	}
	if config.Messages.Restart == "" {
		result.info("messages.restart not set, default is used")
	}
	if config.Messages.NewRecord == "" {
		result.info("messages.new_record not set, default is used")
	}

	return result
}

// validateDir validates every *.json file in dir and reports whether all of
// them are valid.
func validateDir(dir string) ([]ValidationResult, bool, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, false, err
	}
	if len(files) == 0 {
		return nil, false, fmt.Errorf("no config files found in %s", dir)
	}

	allValid := true
	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		result := validateConfig(file)
		allValid = allValid && result.Valid
		results = append(results, result)
	}
	return results, allValid, nil
}

// main validates the config directory, printing a concise report and
// exiting with non-zero status if any file is invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	results, allValid, err := validateDir(configDir)
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}

	for _, result := range results {
		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
