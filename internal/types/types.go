// Package types provides type-safe constants for the photon-sync update
// pipeline.
//
// This package centralizes the enumerated types used throughout the codebase,
// replacing magic strings with typed constants that provide compile-time safety
// and validation methods.
package types

import (
	"fmt"
	"strings"
)

// Strategy governs how an update trades downtime against disk usage.
type Strategy string

const (
	// StrategyParallel downloads and installs beside the serving snapshot,
	// stopping the service only for the final swap. Needs space for two
	// full generations.
	StrategyParallel Strategy = "PARALLEL"
	// StrategySequential stops the service before downloading. The service
	// is unavailable for the whole update, but only one extra generation
	// of disk headroom is needed.
	StrategySequential Strategy = "SEQUENTIAL"
	// StrategyDisabled turns scheduled updates off. Forced updates still run.
	StrategyDisabled Strategy = "DISABLED"
)

// AllStrategies returns all valid update strategies.
func AllStrategies() []Strategy {
	return []Strategy{StrategyParallel, StrategySequential, StrategyDisabled}
}

// Validate checks if the Strategy is a valid value.
func (s Strategy) Validate() error {
	switch s {
	case StrategyParallel, StrategySequential, StrategyDisabled:
		return nil
	case "":
		return fmt.Errorf("update strategy is required")
	default:
		return fmt.Errorf("invalid update strategy '%s' (must be PARALLEL, SEQUENTIAL, or DISABLED)", s)
	}
}

// String returns the string representation of the Strategy.
func (s Strategy) String() string {
	return string(s)
}

// IsDisabled returns true if scheduled updates are turned off.
func (s Strategy) IsDisabled() bool {
	return s == StrategyDisabled
}

// ParseStrategy parses a string into a Strategy.
// Returns an error if the string is not a valid strategy.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToUpper(strings.TrimSpace(s)))
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}

// Stage identifies where in the update pipeline a cycle currently is.
// A failed cycle reports the stage it failed in.
type Stage string

const (
	StageIdle       Stage = "IDLE"
	StageDueCheck   Stage = "DUE_CHECK"
	StageFetching   Stage = "FETCHING"
	StageVerifying  Stage = "VERIFYING"
	StageInstalling Stage = "INSTALLING"
	StagePromoting  Stage = "PROMOTING"
	StageReloading  Stage = "RELOADING"
)

// String returns the string representation of the Stage.
func (s Stage) String() string {
	return string(s)
}

// Outcome is the final result of one update cycle.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	return string(o)
}

// Generation names one of the on-disk dataset generation directories.
type Generation string

const (
	// GenerationCurrent is the only generation the service may serve from.
	GenerationCurrent Generation = "current"
	// GenerationStaging holds a generation being prepared; never served.
	GenerationStaging Generation = "staging"
	// GenerationPrevious is the last generation, kept until the next gc.
	GenerationPrevious Generation = "previous"
)

// String returns the string representation of the Generation.
func (g Generation) String() string {
	return string(g)
}
