package model

// Aggregate summarizes the result rows of one session.
type Aggregate struct {
	Total    int
	Finished int
	Passed   int
}

// Summarize counts results. total is the count fixed at creation; the larger
// of total and len(results) is used so a missing row keeps the session pending.
func Summarize(results []TestCaseResult, total int) Aggregate {
	agg := Aggregate{Total: total}
	if len(results) > agg.Total {
		agg.Total = len(results)
	}
	for _, r := range results {
		if r.Verdict.IsPending() {
			continue
		}
		agg.Finished++
		if r.Verdict == VerdictPassed {
			agg.Passed++
		}
	}
	return agg
}

// Resolved reports whether every test case has a terminal verdict.
func (a Aggregate) Resolved() bool {
	return a.Finished >= a.Total
}

// Status is Processing until resolved, then Accepted iff every case passed.
func (a Aggregate) Status() SubmissionStatus {
	if !a.Resolved() {
		return StatusProcessing
	}
	if a.Passed == a.Total {
		return StatusAccepted
	}
	return StatusWrongAnswer
}
