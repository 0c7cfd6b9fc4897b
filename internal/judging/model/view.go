package model

import "time"

// Run session status strings.
const (
	RunStatusProcessing = "Processing"
	RunStatusCompleted  = "Completed"
)

// ProcessingMessage is returned while a submission is still being judged.
const ProcessingMessage = "Submission is still being processed."

// CreateRequest starts a run or submit session.
type CreateRequest struct {
	Mode           Mode
	UserID         int64
	ProblemSlug    string
	LanguageID     int
	Code           string
	ClientIP       string
	IdempotencyKey string
}

// RunTestCase tells the client which result id belongs to which sample.
type RunTestCase struct {
	ResultID       string `json:"resultId"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

// Created is returned by session creation.
type Created struct {
	ID        string        `json:"id"`
	Mode      Mode          `json:"mode"`
	TestCases []RunTestCase `json:"testCases,omitempty"`
}

// ResultView is the client-facing shape of one result row.
type ResultView struct {
	ResultID string  `json:"resultId"`
	Ordinal  int     `json:"ordinal"`
	Verdict  Verdict `json:"verdict"`
	Stdout   *string `json:"stdout,omitempty"`
	Stderr   *string `json:"stderr,omitempty"`
}

// RunView is the poll response in run mode.
type RunView struct {
	Status  string       `json:"status"`
	Results []ResultView `json:"results"`
}

// SubmissionView is the poll response in submit mode. Only the counters and
// message are set while processing.
type SubmissionView struct {
	SubmissionID   string           `json:"submissionId,omitempty"`
	UserID         int64            `json:"userId,omitempty"`
	ProblemID      int64            `json:"problemId,omitempty"`
	LanguageID     int              `json:"languageId,omitempty"`
	Code           string           `json:"code,omitempty"`
	StatusID       SubmissionStatus `json:"statusId"`
	Status         string           `json:"status,omitempty"`
	Message        string           `json:"message,omitempty"`
	Token          string           `json:"token,omitempty"`
	CreatedAt      *time.Time       `json:"createdAt,omitempty"`
	FinalizedAt    *time.Time       `json:"finalizedAt,omitempty"`
	Results        []ResultView     `json:"results,omitempty"`
	PassedCount    *int             `json:"passedCount,omitempty"`
	FinishedCount  int              `json:"finishedCount"`
	TotalTestCases int              `json:"totalTestCases"`
}

// PollResult carries whichever view matches the session mode.
type PollResult struct {
	Mode       Mode
	Run        *RunView
	Submission *SubmissionView
}

// ProblemView is a catalog problem together with its per-language stubs.
type ProblemView struct {
	Problem
	Boilerplates []Boilerplate `json:"boilerplates"`
}

// ToResultViews converts result rows in ordinal order.
func ToResultViews(results []TestCaseResult) []ResultView {
	views := make([]ResultView, 0, len(results))
	for _, r := range results {
		views = append(views, ResultView{
			ResultID: r.ID,
			Ordinal:  r.Ordinal,
			Verdict:  r.Verdict,
			Stdout:   r.Stdout,
			Stderr:   r.Stderr,
		})
	}
	return views
}
