package types

// RoutingDecision is the coordinator's chosen next action for the current
// iteration. It is produced fresh each iteration and never persisted beyond
// the step that consumes it.
type RoutingDecision string

const (
	// DecisionSearchInternal dispatches the internal document search agent.
	DecisionSearchInternal RoutingDecision = "search_internal"
	// DecisionSearchWeb dispatches the open web search agent.
	DecisionSearchWeb RoutingDecision = "search_web"
	// DecisionSynthesize dispatches the synthesizer and terminates the run.
	DecisionSynthesize RoutingDecision = "synthesize"
)

// WorkflowState holds the mutable state of one in-flight question. It is
// owned exclusively by a single engine invocation for the duration of the
// run; evidence slices are append-only within a run.
type WorkflowState struct {
	RunID    string `json:"run_id"`
	Question string `json:"question"`

	// Iteration counts completed coordinator decisions, starting at 0.
	Iteration int `json:"iteration"`

	InternalResults []Evidence `json:"internal_results"`
	WebResults      []Evidence `json:"web_results"`

	// InternalSearched is set true once internal search executes. Kept
	// separate from the results slice so an empty provider response still
	// counts as attempted and the run moves on instead of re-searching.
	InternalSearched bool `json:"internal_searched"`

	// UsedWebSearch is set true exactly once web search executes and is
	// never reset, even when the provider returned nothing.
	UsedWebSearch bool `json:"used_web_search"`

	FinalAnswer string             `json:"final_answer,omitempty"`
	Sources     []SourceDescriptor `json:"sources,omitempty"`

	// Completed is true iff the run reached its terminal synthesis step.
	Completed bool `json:"completed"`
}

// NewWorkflowState creates the initial state for a question.
func NewWorkflowState(runID, question string) *WorkflowState {
	return &WorkflowState{
		RunID:    runID,
		Question: question,
	}
}

// AddInternalResults appends internal evidence and marks internal search as
// attempted. A nil slice (degraded search) still counts as attempted.
func (s *WorkflowState) AddInternalResults(results []Evidence) {
	s.InternalSearched = true
	s.InternalResults = append(s.InternalResults, results...)
}

// AddWebResults appends web evidence and marks web search as used.
func (s *WorkflowState) AddWebResults(results []Evidence) {
	s.UsedWebSearch = true
	s.WebResults = append(s.WebResults, results...)
}

// SetFinalAnswer records the terminal answer and its consolidated sources.
func (s *WorkflowState) SetFinalAnswer(answer string, sources []SourceDescriptor) {
	s.FinalAnswer = answer
	s.Sources = sources
	s.Completed = true
}

// AllEvidence returns internal evidence followed by web evidence.
func (s *WorkflowState) AllEvidence() []Evidence {
	out := make([]Evidence, 0, len(s.InternalResults)+len(s.WebResults))
	out = append(out, s.InternalResults...)
	out = append(out, s.WebResults...)
	return out
}
