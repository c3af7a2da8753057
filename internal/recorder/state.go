package recorder

// State is the lifecycle of a recording session
type State int

const (
	NotStarted State = iota
	Recording
	// Completed sessions reached their duration or the silence timeout
	Completed
	// Interrupted sessions were cancelled before their duration elapsed
	Interrupted
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Recording:
		return "recording"
	case Completed:
		return "completed"
	case Interrupted:
		return "interrupted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the session has stopped
func (s State) IsTerminal() bool {
	return s == Completed || s == Interrupted || s == Failed
}
