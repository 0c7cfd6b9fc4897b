package model

import "time"

// Submission is one grading session.
type Submission struct {
	ID             string           `json:"submissionId"`
	Mode           Mode             `json:"mode"`
	UserID         int64            `json:"userId"`
	ProblemID      int64            `json:"problemId"`
	LanguageID     int              `json:"languageId"`
	Code           string           `json:"code"`
	Status         SubmissionStatus `json:"statusId"`
	Token          string           `json:"token"`
	TotalTestCases int              `json:"totalTestCases"`
	CreatedAt      time.Time        `json:"createdAt"`
	FinalizedAt    *time.Time       `json:"finalizedAt,omitempty"`
}

// TestCaseResult is the verdict for one (submission, fixture) pair.
type TestCaseResult struct {
	ID             string    `json:"resultId"`
	SubmissionID   string    `json:"submissionId"`
	Ordinal        int       `json:"ordinal"`
	Verdict        Verdict   `json:"verdict"`
	ExecutionToken *string   `json:"executionToken,omitempty"`
	Stdout         *string   `json:"stdout,omitempty"`
	Stderr         *string   `json:"stderr,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Fixture is an input and expected output pair.
type Fixture struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Problem is a catalog row. The service never writes it.
type Problem struct {
	ID           int64  `json:"id"`
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	InputFormat  string `json:"inputFormat"`
	OutputFormat string `json:"outputFormat"`
	Constraints  string `json:"constraints"`
	Difficulty   string `json:"difficulty"`
}

// Boilerplate pairs the editable stub shown to users with the full program
// that wraps it.
type Boilerplate struct {
	ProblemID    int64  `json:"problemId"`
	LanguageID   int    `json:"languageId"`
	LanguageName string `json:"languageName"`
	EditableStub string `json:"code"`
	FullScaffold string `json:"-"`
}

// CallbackPayload is the body the execution service posts for one test case.
type CallbackPayload struct {
	Status *CallbackStatus `json:"status"`
	Stdout *string         `json:"stdout"`
	Stderr *string         `json:"stderr"`
	Token  *string         `json:"token"`
}

// CallbackStatus is the status object inside a callback.
type CallbackStatus struct {
	ID          *int   `json:"id"`
	Description string `json:"description,omitempty"`
}

// ResultUpdate is the terminal write produced from a callback.
type ResultUpdate struct {
	ResultID       string
	Verdict        Verdict
	ExecutionToken string
	Stdout         *string
	Stderr         *string
	UpdatedAt      time.Time
}

// StaleSession identifies a Processing session picked up by the sweeper.
type StaleSession struct {
	ID   string
	Mode Mode
}
