package repl

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"judgeflow/internal/cli/command"
	httpclient "judgeflow/internal/cli/http"
	"judgeflow/internal/cli/state"
	"judgeflow/internal/judging/model"
)

type fakeService struct {
	polls atomic.Int32
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/run":
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"code":10000,"message":"Success","data":{"runId":"run-abc","testCases":[]}}`))
	case r.Method == http.MethodPost && r.URL.Path == "/api/submit":
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"code":10000,"message":"Success","data":{"submissionId":"sub-xyz"}}`))
	case r.URL.Path == "/api/run/run-abc":
		if f.polls.Add(1) < 2 {
			_, _ = w.Write([]byte(`{"code":10000,"data":{"status":"Processing","results":[]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":10000,"data":{"status":"Completed","results":[]}}`))
	case r.URL.Path == "/api/submit/sub-xyz":
		_, _ = w.Write([]byte(`{"code":10000,"data":{"statusId":2,"finishedCount":0,"totalTestCases":4}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":10003,"message":"Resource not found"}`))
	}
}

func newSession(t *testing.T) (*Session, *bytes.Buffer, string) {
	t.Helper()
	srv := httptest.NewServer(&fakeService{})
	t.Cleanup(srv.Close)

	statePath := filepath.Join(t.TempDir(), "state.json")
	st := &state.State{}
	policies := model.Policies{
		Run:    model.VariantPolicy{PollInterval: 5 * time.Millisecond, ClientDeadline: time.Second},
		Submit: model.VariantPolicy{PollInterval: 5 * time.Millisecond, ClientDeadline: 30 * time.Millisecond},
	}
	s := New(httpclient.New(srv.URL, time.Second), command.Registry(), st, statePath, false, policies)
	out := &bytes.Buffer{}
	s.out = out
	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s, out, statePath
}

func TestCreateRemembersRunAndWaitUsesIt(t *testing.T) {
	s, out, statePath := newSession(t)
	ctx := context.Background()

	s.Execute(ctx, `run create slug=two-sum lang=71 code="print(1)"`)
	if s.state.LastRunID != "run-abc" {
		t.Fatalf("LastRunID = %q, output:\n%s", s.state.LastRunID, out)
	}
	saved, err := state.Load(statePath)
	if err != nil || saved.LastRunID != "run-abc" {
		t.Fatalf("state not persisted: %+v, %v", saved, err)
	}

	out.Reset()
	s.Execute(ctx, "run wait")
	if !strings.Contains(out.String(), "resolved after 2 polls") {
		t.Fatalf("unexpected wait output:\n%s", out)
	}
	if !strings.Contains(out.String(), `"Completed"`) {
		t.Fatalf("terminal response not rendered:\n%s", out)
	}
}

func TestSubmitWaitHitsClientDeadline(t *testing.T) {
	s, out, _ := newSession(t)
	ctx := context.Background()

	s.Execute(ctx, `submit create user=42 slug=two-sum lang=71 code=x`)
	if s.state.LastSubmissionID != "sub-xyz" {
		t.Fatalf("LastSubmissionID = %q", s.state.LastSubmissionID)
	}

	out.Reset()
	s.Execute(ctx, "submit wait")
	if !strings.Contains(out.String(), "status: Time Limit Exceeded") {
		t.Fatalf("expected client timeout, got:\n%s", out)
	}
}

func TestPollWithoutRememberedID(t *testing.T) {
	s, out, _ := newSession(t)
	s.Execute(context.Background(), "submit poll")
	if !strings.Contains(out.String(), "no submit remembered yet") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestMissingRequiredFieldWithoutPrompt(t *testing.T) {
	s, out, _ := newSession(t)
	s.Execute(context.Background(), "run create slug=two-sum code=x")
	if !strings.Contains(out.String(), "language_id is required") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestPromptFillsMissingField(t *testing.T) {
	s, out, _ := newSession(t)
	var asked []string
	s.readLine = func(p string) (string, error) {
		asked = append(asked, p)
		return "71", nil
	}
	s.Execute(context.Background(), "run create slug=two-sum code=x")
	if len(asked) != 1 || asked[0] != "judge0 language id: " {
		t.Fatalf("prompts = %v", asked)
	}
	if s.state.LastRunID != "run-abc" {
		t.Fatalf("run was not created, output:\n%s", out)
	}
}

func TestSystemCommands(t *testing.T) {
	s, out, _ := newSession(t)
	ctx := context.Background()

	if s.Execute(ctx, "set deadline run 45s") {
		t.Fatalf("set should not quit")
	}
	if s.policies.Run.ClientDeadline != 45*time.Second {
		t.Fatalf("deadline = %s", s.policies.Run.ClientDeadline)
	}
	s.Execute(ctx, "set base http://example.test/")
	if s.client.BaseURL() != "http://example.test" {
		t.Fatalf("base = %s", s.client.BaseURL())
	}
	s.Execute(ctx, "show state")
	if !strings.Contains(out.String(), "last run: <empty>") {
		t.Fatalf("unexpected show output:\n%s", out)
	}
	s.Execute(ctx, "bogus cmd")
	if !strings.Contains(out.String(), "unknown command: bogus cmd") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !s.Execute(ctx, "exit") {
		t.Fatalf("exit should end the session")
	}
}
