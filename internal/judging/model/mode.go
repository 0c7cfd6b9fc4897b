package model

import (
	"fmt"
	"strconv"
	"time"
)

// Mode selects between the ephemeral run flow and the persistent submit flow.
type Mode string

const (
	ModeRun    Mode = "run"
	ModeSubmit Mode = "submit"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRun, ModeSubmit:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Token returns the creation token for a session started at now,
// "run-<unix millis>" or "submit-<unix millis>".
func (m Mode) Token(now time.Time) string {
	return string(m) + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}
