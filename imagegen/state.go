package imagegen

// Stage names the unit of work an error is attributed to.
type Stage string

const (
	StageValidating   Stage = "validating"
	StageDescribing   Stage = "describing"
	StageSynthesizing Stage = "synthesizing"
	StagePersisting   Stage = "persisting"
)

// State is a pipeline run's position in its state machine:
//
//	Validating -> Branching -> [Describing ->] Synthesizing -> Persisting -> Done
//
// Failed is reachable from every non-terminal state. Each state is entered
// at most once per run.
type State string

const (
	StateValidating   State = "Validating"
	StateBranching    State = "Branching"
	StateDescribing   State = "Describing"
	StateSynthesizing State = "Synthesizing"
	StatePersisting   State = "Persisting"
	StateDone         State = "Done"
	StateFailed       State = "Failed"
)

// IsTerminal reports whether no further transition can happen.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// StateHook observes transitions. It is called synchronously on the
// request's goroutine and must not block.
type StateHook func(correlationID string, state State)
