package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"judgeflow/internal/common/cache"
	"judgeflow/internal/common/db"
	"judgeflow/internal/judging/executor"
	"judgeflow/internal/judging/model"
	"judgeflow/internal/judging/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeStore is an in-memory submission and result store with the same
// conditional-update semantics as the MySQL repositories.
type fakeStore struct {
	mu          sync.Mutex
	submissions map[string]model.Submission
	results     map[string]model.TestCaseResult

	finalizeCalls int
	applied       int
	applyCalls    int
	deletes       int
	batchErr      error
	deleteErr     error
	// duplicates makes the next N creates collide on the session id.
	duplicates int
	createIDs  []string

	// Fired once, outside the lock, after the next read of that kind.
	afterGet  func()
	afterList func()
}

func (f *fakeStore) fire(hook *func()) {
	f.mu.Lock()
	fn := *hook
	*hook = nil
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		submissions: make(map[string]model.Submission),
		results:     make(map[string]model.TestCaseResult),
	}
}

func (f *fakeStore) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	f.mu.Lock()
	subs := make(map[string]model.Submission, len(f.submissions))
	for k, v := range f.submissions {
		subs[k] = v
	}
	res := make(map[string]model.TestCaseResult, len(f.results))
	for k, v := range f.results {
		res[k] = v
	}
	f.mu.Unlock()

	if err := fn(nil); err != nil {
		f.mu.Lock()
		f.submissions, f.results = subs, res
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) Create(ctx context.Context, tx db.Transaction, submission *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createIDs = append(f.createIDs, submission.ID)
	if f.duplicates > 0 {
		f.duplicates--
		return repository.ErrDuplicateID
	}
	f.submissions[submission.ID] = *submission
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, tx db.Transaction, submissionID string) (*model.Submission, error) {
	defer f.fire(&f.afterGet)
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.submissions[submissionID]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	return &s, nil
}

func (f *fakeStore) Finalize(ctx context.Context, submissionID string, status model.SubmissionStatus, at time.Time) (model.SubmissionStatus, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizeCalls++
	s, ok := f.submissions[submissionID]
	if !ok {
		return 0, false, repository.ErrSubmissionNotFound
	}
	if s.Status != model.StatusProcessing {
		return s.Status, false, nil
	}
	s.Status = status
	s.FinalizedAt = &at
	f.submissions[submissionID] = s
	f.applied++
	return status, true, nil
}

func (f *fakeStore) Delete(ctx context.Context, submissionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes++
	for id, r := range f.results {
		if r.SubmissionID == submissionID {
			delete(f.results, id)
		}
	}
	delete(f.submissions, submissionID)
	return nil
}

func (f *fakeStore) ListStale(ctx context.Context, mode model.Mode, cutoff time.Time, limit int) ([]model.StaleSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.StaleSession
	for _, s := range f.submissions {
		if s.Mode == mode && s.Status == model.StatusProcessing && s.CreatedAt.Before(cutoff) {
			out = append(out, model.StaleSession{ID: s.ID, Mode: s.Mode})
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) CreateBatch(ctx context.Context, tx db.Transaction, results []model.TestCaseResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return f.batchErr
	}
	for _, r := range results {
		f.results[r.ID] = r
	}
	return nil
}

func (f *fakeStore) ListBySubmission(ctx context.Context, submissionID string) ([]model.TestCaseResult, error) {
	defer f.fire(&f.afterList)
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.TestCaseResult
	for _, r := range f.results {
		if r.SubmissionID == submissionID {
			out = append(out, r)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Ordinal < out[j-1].Ordinal; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (f *fakeStore) Apply(ctx context.Context, update model.ResultUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyCalls++
	r, ok := f.results[update.ResultID]
	if !ok {
		return repository.ErrResultNotFound
	}
	r.Verdict = update.Verdict
	token := update.ExecutionToken
	r.ExecutionToken = &token
	r.Stdout = update.Stdout
	r.Stderr = update.Stderr
	r.UpdatedAt = update.UpdatedAt
	f.results[update.ResultID] = r
	return nil
}

// setVerdicts overwrites the verdicts of a session's results by ordinal.
func (f *fakeStore) setVerdicts(submissionID string, verdicts ...model.Verdict) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.results {
		if r.SubmissionID == submissionID && r.Ordinal < len(verdicts) {
			r.Verdict = verdicts[r.Ordinal]
			f.results[id] = r
		}
	}
}

func (f *fakeStore) resultIDs(submissionID string) []string {
	results, _ := f.ListBySubmission(context.Background(), submissionID)
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

type fakeProblems struct {
	problems     map[string]model.Problem
	boilerplates map[int]model.Boilerplate
	err          error
}

func (f *fakeProblems) GetBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.problems[slug]
	if !ok {
		return nil, repository.ErrProblemNotFound
	}
	return &p, nil
}

func (f *fakeProblems) GetBoilerplate(ctx context.Context, problemID int64, languageID int) (*model.Boilerplate, error) {
	b, ok := f.boilerplates[languageID]
	if !ok || b.ProblemID != problemID {
		return nil, repository.ErrBoilerplateNotFound
	}
	return &b, nil
}

func (f *fakeProblems) ListBoilerplates(ctx context.Context, problemID int64) ([]model.Boilerplate, error) {
	var out []model.Boilerplate
	for _, b := range f.boilerplates {
		if b.ProblemID == problemID {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeFixtures struct {
	fixtures map[string][]model.Fixture
	err      error
}

func (f *fakeFixtures) FetchFixtures(ctx context.Context, slug string) ([]model.Fixture, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.fixtures[slug], nil
}

type fakeExecutor struct {
	mu       sync.Mutex
	requests []executor.ExecutionRequest
	failOn   string
}

func (f *fakeExecutor) Submit(ctx context.Context, req executor.ExecutionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.failOn != "" && req.Stdin == f.failOn {
		return "", errors.New("execution service unavailable")
	}
	return "tok-" + req.Stdin, nil
}

func (f *fakeExecutor) calls() []executor.ExecutionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]executor.ExecutionRequest(nil), f.requests...)
}

type fakeCallbacks struct {
	verifyErr error
}

func (f *fakeCallbacks) URL(resultID, submissionID string) (string, error) {
	return "http://judge.local/api/webhook?resultId=" + resultID, nil
}

func (f *fakeCallbacks) Verify(resultID, sig string) error {
	return f.verifyErr
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.VerdictEvent
}

func (f *fakePublisher) PublishFinal(ctx context.Context, event model.VerdictEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func newMiniCache(t *testing.T) (cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return c, mr
}

const (
	testSlug       = "two-sum"
	testProblemID  = int64(7)
	testLanguageID = 71
	testStub       = "def solve(a, b):\n    pass\n"
	testScaffold   = "import sys\n" + testStub + "print(solve(*map(int, sys.stdin.read().split())))\n"
)

type harness struct {
	svc        *JudgingService
	store      *fakeStore
	problems   *fakeProblems
	fixtures   *fakeFixtures
	exec       *fakeExecutor
	callbacks  *fakeCallbacks
	publisher  *fakePublisher
	dispatcher *Dispatcher
}

func fixtureSet(n int) []model.Fixture {
	out := make([]model.Fixture, n)
	for i := range out {
		out[i] = model.Fixture{Input: strings.Repeat("i", i+1), Output: strings.Repeat("o", i+1)}
	}
	return out
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		store: newFakeStore(),
		problems: &fakeProblems{
			problems: map[string]model.Problem{testSlug: {ID: testProblemID, Slug: testSlug, Title: "Two Sum"}},
			boilerplates: map[int]model.Boilerplate{testLanguageID: {
				ProblemID:    testProblemID,
				LanguageID:   testLanguageID,
				LanguageName: "Python",
				EditableStub: testStub,
				FullScaffold: testScaffold,
			}},
		},
		fixtures:  &fakeFixtures{fixtures: map[string][]model.Fixture{testSlug: fixtureSet(5)}},
		exec:      &fakeExecutor{},
		callbacks: &fakeCallbacks{},
		publisher: &fakePublisher{},
	}
	dispatcher, err := NewDispatcher(DispatcherConfig{Client: h.exec, Callbacks: h.callbacks, MaxWidth: 2})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	h.dispatcher = dispatcher

	cfg := Config{
		Submissions: h.store,
		Results:     h.store,
		Problems:    h.problems,
		Fixtures:    h.fixtures,
		Tx:          h.store,
		Dispatcher:  dispatcher,
		Callbacks:   h.callbacks,
		Publisher:   h.publisher,
		Policies:    model.DefaultPolicies(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := NewJudgingService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.svc = svc
	return h
}

func (h *harness) create(t *testing.T, mode model.Mode) model.Created {
	t.Helper()
	created, err := h.svc.Create(context.Background(), model.CreateRequest{
		Mode:        mode,
		UserID:      42,
		ProblemSlug: testSlug,
		LanguageID:  testLanguageID,
		Code:        "def solve(a, b):\n    return a + b\n",
	})
	if err != nil {
		t.Fatalf("create %s: %v", mode, err)
	}
	h.dispatcher.Wait()
	return created
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func acceptedPayload(stdout string) model.CallbackPayload {
	return model.CallbackPayload{
		Status: &model.CallbackStatus{ID: intPtr(3), Description: "Accepted"},
		Stdout: strPtr(stdout),
		Token:  strPtr("exec-token"),
	}
}

func wrongPayload() model.CallbackPayload {
	return model.CallbackPayload{
		Status: &model.CallbackStatus{ID: intPtr(4), Description: "Wrong Answer"},
		Stdout: strPtr("nope"),
		Token:  strPtr("exec-token"),
	}
}
