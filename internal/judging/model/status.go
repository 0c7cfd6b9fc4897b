package model

import (
	"fmt"
	"strings"
)

// SubmissionStatus reuses the execution service's numeric status space.
type SubmissionStatus int

const (
	StatusProcessing  SubmissionStatus = 2
	StatusAccepted    SubmissionStatus = 3
	StatusWrongAnswer SubmissionStatus = 4
	StatusTimeout     SubmissionStatus = 5
)

// ExecutionAccepted is the execution service status id for a passing run.
const ExecutionAccepted = 3

// IsTerminal reports whether the status can no longer change.
func (s SubmissionStatus) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusWrongAnswer, StatusTimeout:
		return true
	default:
		return false
	}
}

func (s SubmissionStatus) String() string {
	switch s {
	case StatusProcessing:
		return "Processing"
	case StatusAccepted:
		return "Accepted"
	case StatusWrongAnswer:
		return "Wrong Answer"
	case StatusTimeout:
		return "Time Limit Exceeded"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Verdict is the outcome of a single test case.
type Verdict int8

const (
	VerdictFailed  Verdict = 0
	VerdictPassed  Verdict = 1
	VerdictPending Verdict = -1
)

// VerdictFromExecution maps an execution status id to a verdict.
func VerdictFromExecution(statusID int) Verdict {
	if statusID == ExecutionAccepted {
		return VerdictPassed
	}
	return VerdictFailed
}

// ParseVerdictCode converts the stored TINYINT into a Verdict.
func ParseVerdictCode(code int8) (Verdict, error) {
	switch v := Verdict(code); v {
	case VerdictPending, VerdictPassed, VerdictFailed:
		return v, nil
	default:
		return 0, fmt.Errorf("unknown verdict code %d", code)
	}
}

// IsPending reports whether no terminal result has been recorded yet.
func (v Verdict) IsPending() bool { return v == VerdictPending }

func (v Verdict) String() string {
	switch v {
	case VerdictPending:
		return "pending"
	case VerdictPassed:
		return "passed"
	case VerdictFailed:
		return "failed"
	default:
		return fmt.Sprintf("verdict(%d)", int8(v))
	}
}

func (v Verdict) MarshalText() ([]byte, error) {
	switch v {
	case VerdictPending, VerdictPassed, VerdictFailed:
		return []byte(v.String()), nil
	default:
		return nil, fmt.Errorf("unknown verdict %d", int8(v))
	}
}

func (v *Verdict) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "pending":
		*v = VerdictPending
	case "passed":
		*v = VerdictPassed
	case "failed":
		*v = VerdictFailed
	default:
		return fmt.Errorf("unknown verdict %q", string(text))
	}
	return nil
}
