package model

import "time"

// VerdictEventFinal is the event type for a finalized submission.
const VerdictEventFinal = "verdict.final"

// VerdictEvent is published once when a submit session is finalized.
type VerdictEvent struct {
	Type           string           `json:"type"`
	SubmissionID   string           `json:"submissionId"`
	UserID         int64            `json:"userId"`
	ProblemID      int64            `json:"problemId"`
	LanguageID     int              `json:"languageId"`
	StatusID       SubmissionStatus `json:"statusId"`
	Status         string           `json:"status"`
	PassedCount    int              `json:"passedCount"`
	TotalTestCases int              `json:"totalTestCases"`
	FinalizedAt    time.Time        `json:"finalizedAt"`
}
