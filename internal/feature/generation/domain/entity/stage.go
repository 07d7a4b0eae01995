package entity

// Stage is a state of the generation workflow.
type Stage int

const (
	StageIdle Stage = iota
	StageValidating
	StageInvoking
	StageSettling
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageValidating:
		return "validating"
	case StageInvoking:
		return "invoking"
	case StageSettling:
		return "settling"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}
