// Package ruleset defines the check-mechanics ruleset fragment consumed by
// the resolution engine, plus YAML loading for seed content.
package ruleset

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a game has no ruleset configured.
var ErrNotFound = errors.New("ruleset not found")

// CheckMechanics describes how checks resolve under a ruleset: which dice to
// roll and the optional critical thresholds. Thresholds compare against the
// first individual die of the base roll, never the total.
type CheckMechanics struct {
	// BaseDice is the dice expression rolled for every check, e.g. "1d20".
	BaseDice string `yaml:"base_dice"`
	// CriticalSuccess is the first-die threshold at or above which a check is
	// forced to success; nil disables the rule.
	CriticalSuccess *int `yaml:"critical_success"`
	// CriticalFailure is the first-die threshold at or below which a check is
	// forced to failure; nil disables the rule.
	CriticalFailure *int `yaml:"critical_failure"`
}

// Ruleset binds check mechanics to a game.
type Ruleset struct {
	GameID         string         `yaml:"game_id"`
	Name           string         `yaml:"name"`
	CheckMechanics CheckMechanics `yaml:"check_mechanics"`
}

// Validate checks the ruleset invariants.
//
// Postcondition: Returns nil iff GameID is set and BaseDice is non-empty.
func (r *Ruleset) Validate() error {
	if r.GameID == "" {
		return fmt.Errorf("ruleset: game_id must not be empty")
	}
	if r.CheckMechanics.BaseDice == "" {
		return fmt.Errorf("ruleset %q: check_mechanics.base_dice must not be empty", r.GameID)
	}
	return nil
}

// LoadDirectory reads every *.yaml file in dir and parses each as a Ruleset.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the parsed rulesets, or an error if any file fails to
// parse or validate.
func LoadDirectory(dir string) ([]*Ruleset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading ruleset dir %q: %w", dir, err)
	}
	var rulesets []*Ruleset
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var rs Ruleset
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&rs); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := rs.Validate(); err != nil {
			return nil, fmt.Errorf("validating %q: %w", path, err)
		}
		rulesets = append(rulesets, &rs)
	}
	return rulesets, nil
}
