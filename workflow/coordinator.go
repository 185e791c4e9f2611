package workflow

import (
	"fmt"

	"github.com/supportflow/supportflow/types"
)

// Score aggregation modes for the quality heuristic.
const (
	ScoreModeMax     = "max"
	ScoreModeAverage = "average"
)

// CoordinatorConfig holds the routing policy knobs. None of these are
// hardcoded in the policy itself.
type CoordinatorConfig struct {
	// MaxIterations bounds coordinator decisions per run (default 3).
	MaxIterations int

	// MinScore is the internal evidence quality threshold; evidence
	// scoring below it triggers web search (default 0.5).
	MinScore float64

	// MinResults is the minimum internal result count considered
	// sufficient (default 1).
	MinResults int

	// MinContentLength is the minimum total internal content length in
	// bytes; 0 disables the check.
	MinContentLength int

	// ScoreMode selects how MinScore is compared: against the maximum
	// internal score or the average.
	ScoreMode string
}

// DefaultCoordinatorConfig returns the shipped policy defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MaxIterations: 3,
		MinScore:      0.5,
		MinResults:    1,
		ScoreMode:     ScoreModeMax,
	}
}

// Validate fails fast on invalid policy settings.
func (c CoordinatorConfig) Validate() error {
	if c.MaxIterations <= 0 {
		return types.NewError(types.ErrInvalidConfig,
			fmt.Sprintf("max_iterations must be > 0, got %d", c.MaxIterations))
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return types.NewError(types.ErrInvalidConfig,
			fmt.Sprintf("min_internal_score must be in [0,1], got %g", c.MinScore))
	}
	if c.MinResults < 0 {
		return types.NewError(types.ErrInvalidConfig,
			fmt.Sprintf("min_internal_results must be >= 0, got %d", c.MinResults))
	}
	if c.MinContentLength < 0 {
		return types.NewError(types.ErrInvalidConfig,
			fmt.Sprintf("min_content_length must be >= 0, got %d", c.MinContentLength))
	}
	if c.ScoreMode != ScoreModeMax && c.ScoreMode != ScoreModeAverage {
		return types.NewError(types.ErrInvalidConfig,
			fmt.Sprintf("score_mode must be %q or %q, got %q", ScoreModeMax, ScoreModeAverage, c.ScoreMode))
	}
	return nil
}

// Coordinator encodes the routing policy. Decide is a pure function of
// state: no side effects, deterministic, safe for concurrent use.
type Coordinator struct {
	cfg CoordinatorConfig
}

// NewCoordinator creates a coordinator, failing fast on invalid config.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.ScoreMode == "" {
		cfg.ScoreMode = ScoreModeMax
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{cfg: cfg}, nil
}

// Decide returns the next action for the current state. Policy order:
// forced synthesis at the iteration bound, then internal-first, then
// web on insufficient internal evidence (at most once), then synthesis.
func (c *Coordinator) Decide(state *types.WorkflowState) types.RoutingDecision {
	if state.Iteration >= c.cfg.MaxIterations {
		return types.DecisionSynthesize
	}

	if !state.InternalSearched {
		return types.DecisionSearchInternal
	}

	if !state.UsedWebSearch && c.insufficient(state.InternalResults) {
		return types.DecisionSearchWeb
	}

	return types.DecisionSynthesize
}

// insufficient implements the internal evidence quality heuristic.
func (c *Coordinator) insufficient(internal []types.Evidence) bool {
	if len(internal) == 0 {
		return true
	}
	if len(internal) < c.cfg.MinResults {
		return true
	}

	score := types.MaxScore(internal)
	if c.cfg.ScoreMode == ScoreModeAverage {
		score = types.AverageScore(internal)
	}
	if score < c.cfg.MinScore {
		return true
	}

	if c.cfg.MinContentLength > 0 && types.TotalContentLength(internal) < c.cfg.MinContentLength {
		return true
	}

	return false
}

// MaxIterations exposes the configured iteration bound.
func (c *Coordinator) MaxIterations() int { return c.cfg.MaxIterations }
