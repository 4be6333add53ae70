package state

type RunStatus string

const (
	StatusPending RunStatus = "pending"
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusFailed  RunStatus = "failed"
)

func (s RunStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s RunStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

var AllStatuses = []RunStatus{
	StatusPending,
	StatusRunning,
	StatusSuccess,
	StatusFailed,
}

type Transition struct {
	From RunStatus
	To   RunStatus
}

var ValidTransitions = []Transition{
	{From: StatusPending, To: StatusRunning},
	{From: StatusRunning, To: StatusSuccess},
	{From: StatusRunning, To: StatusFailed},
}

func IsValidTransition(from, to RunStatus) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// Parse converts a stored status string back into a RunStatus.
func Parse(s string) (RunStatus, bool) {
	for _, status := range AllStatuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}
