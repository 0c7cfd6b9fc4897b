package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"judgeflow/internal/cli/command"
	httpclient "judgeflow/internal/cli/http"
	"judgeflow/internal/cli/poller"
	"judgeflow/internal/cli/state"
	"judgeflow/internal/judging/model"
	appErr "judgeflow/pkg/errors"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const prompt = "judgectl> "

// Session holds REPL state.
type Session struct {
	client     *httpclient.Client
	commands   map[string]command.Command
	state      *state.State
	statePath  string
	prettyJSON bool
	policies   model.Policies

	out      io.Writer
	readLine func(prompt string) (string, error)
	now      func() time.Time
}

func New(client *httpclient.Client, commands map[string]command.Command, st *state.State, statePath string, prettyJSON bool, policies model.Policies) *Session {
	return &Session{
		client:     client,
		commands:   commands,
		state:      st,
		statePath:  statePath,
		prettyJSON: prettyJSON,
		policies:   policies.WithDefaults(),
		out:        os.Stdout,
		now:        time.Now,
	}
}

// Run reads commands until exit, EOF or an interrupt on an empty line.
func (s *Session) Run(ctx context.Context, historyPath string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyPath,
		AutoComplete:    completer(s.commands),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline failed: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s.out = rl.Stdout()
	s.readLine = func(p string) (string, error) {
		rl.SetPrompt(p)
		defer rl.SetPrompt(prompt)
		return rl.Readline()
	}

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		if s.Execute(ctx, line) {
			s.printLine("bye")
			return nil
		}
	}
}

// Execute handles one input line and reports whether the session should end.
func (s *Session) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	handled, quit := s.handleSystemCommand(line)
	if quit {
		return true
	}
	if handled {
		return false
	}
	if err := s.handleCommand(ctx, line); err != nil {
		s.printLine("error: %v", err)
	}
	return false
}

func (s *Session) handleSystemCommand(line string) (handled, quit bool) {
	switch line {
	case "exit", "quit":
		return true, true
	case "help":
		s.printHelp()
		return true, false
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.Fields(strings.TrimPrefix(line, "set ")))
		return true, false
	}
	if line == "show" || strings.HasPrefix(line, "show ") {
		s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show")))
		return true, false
	}
	return false, false
}

func (s *Session) handleSet(parts []string) {
	if len(parts) == 0 {
		s.printLine("usage: set base|timeout|interval|deadline")
		return
	}
	switch parts[0] {
	case "base":
		if len(parts) < 2 {
			s.printLine("usage: set base http://127.0.0.1:3000")
			return
		}
		s.client.SetBaseURL(parts[1])
		s.printLine("base set to %s", s.client.BaseURL())
	case "timeout":
		if len(parts) < 2 {
			s.printLine("usage: set timeout 10s")
			return
		}
		dur, err := time.ParseDuration(parts[1])
		if err != nil {
			s.printLine("invalid duration: %v", err)
			return
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
	case "interval", "deadline":
		if len(parts) < 3 {
			s.printLine("usage: set %s run|submit 3s", parts[0])
			return
		}
		mode, err := model.ParseMode(parts[1])
		if err != nil {
			s.printLine("%v", err)
			return
		}
		dur, err := time.ParseDuration(parts[2])
		if err != nil || dur <= 0 {
			s.printLine("invalid duration: %s", parts[2])
			return
		}
		policy := s.policyRef(mode)
		if parts[0] == "interval" {
			policy.PollInterval = dur
		} else {
			policy.ClientDeadline = dur
		}
		s.printLine("%s %s set to %s", mode, parts[0], dur)
	default:
		s.printLine("unknown set command")
	}
}

func (s *Session) policyRef(mode model.Mode) *model.VariantPolicy {
	if mode == model.ModeRun {
		return &s.policies.Run
	}
	return &s.policies.Submit
}

func (s *Session) handleShow(args string) {
	switch args {
	case "state":
		s.printLine("last run: %s", orEmpty(s.state.LastRunID))
		s.printLine("last submission: %s", orEmpty(s.state.LastSubmissionID))
	case "config":
		s.printLine("base: %s", s.client.BaseURL())
		s.printLine("statePath: %s", s.statePath)
		for _, p := range []model.VariantPolicy{s.policies.Run, s.policies.Submit} {
			s.printLine("%s: poll every %s, deadline %s", p.Mode, p.PollInterval, p.ClientDeadline)
		}
	default:
		s.printLine("usage: show state|config")
	}
}

func (s *Session) handleCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <service> <action> key=value ...")
	}
	cmd, ok := s.commands[tokens[0]+" "+tokens[1]]
	if !ok {
		return fmt.Errorf("unknown command: %s %s", tokens[0], tokens[1])
	}
	params, err := command.ParseArgs(tokens[2:])
	if err != nil {
		return err
	}
	params.Canonicalize(cmd.Fields)

	if err := s.applyParamShortcuts(cmd, params); err != nil {
		return err
	}
	if err := s.promptMissing(cmd, params); err != nil {
		return err
	}
	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}

	if cmd.Wait {
		return s.wait(ctx, cmd, req.Path)
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	if cmd.Action == "create" {
		s.rememberCreated(cmd.Mode, resp.Body)
	}
	return nil
}

func (s *Session) applyParamShortcuts(cmd command.Command, params command.Params) error {
	if cmd.Action == "create" && params.Get("source_file") != "" && params.Get("code") == "" {
		params.Set("code", command.FileMarker)
	}
	if (cmd.Action == "poll" || cmd.Action == "wait") && params.Get("id") == "" {
		id := s.state.Last(cmd.Mode)
		if id == "" {
			return fmt.Errorf("no %s remembered yet, pass id=<id>", cmd.Mode)
		}
		params.Set("id", id)
	}
	return nil
}

func (s *Session) promptMissing(cmd command.Command, params command.Params) error {
	for _, field := range cmd.Fields {
		if !field.Required || params.Get(field.Name) != "" {
			continue
		}
		if s.readLine == nil {
			return fmt.Errorf("%s is required", field.Name)
		}
		value, err := s.readLine(field.Prompt + ": ")
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		params.Set(field.Name, strings.TrimSpace(value))
	}
	return nil
}

func (s *Session) wait(ctx context.Context, cmd command.Command, path string) error {
	policy := s.policies.PolicyFor(cmd.Mode)
	s.printLine("waiting on %s (every %s, deadline %s)", path, policy.PollInterval, policy.ClientDeadline)

	out, err := poller.New(s.client, policy).Wait(ctx, path)
	if err != nil {
		if appErr.Is(err, appErr.ClientTimeout) {
			s.printLine("status: %s after %d polls", err.Error(), out.Attempts)
			return nil
		}
		return err
	}
	s.renderResponse(out.Response)
	s.printLine("resolved after %d polls (%s)", out.Attempts, out.Elapsed.Round(time.Millisecond))
	return nil
}

func (s *Session) rememberCreated(mode model.Mode, body []byte) {
	var resp struct {
		Code appErr.ErrorCode `json:"code"`
		Data struct {
			RunID        string `json:"runId"`
			SubmissionID string `json:"submissionId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Code != appErr.Success {
		return
	}
	id := resp.Data.SubmissionID
	if mode == model.ModeRun {
		id = resp.Data.RunID
	}
	if id == "" {
		return
	}
	s.state.Remember(mode, id, s.now())
	if err := state.Save(s.statePath, *s.state); err != nil {
		s.printLine("save state failed: %v", err)
	}
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration)
	if len(resp.Body) == 0 {
		return
	}
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", string(resp.Body))
}

func (s *Session) printHelp() {
	keys := make([]string, 0, len(s.commands))
	for key := range s.commands {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	s.printLine("usage: <service> <action> key=value ...")
	s.printLine("commands: %s", strings.Join(keys, " | "))
	s.printLine("system: help | exit | set base|timeout|interval|deadline | show state|config")
	s.printLine("examples:")
	s.printLine("  run create problem_slug=two-sum language_id=71 source_file=./main.py")
	s.printLine("  run wait")
	s.printLine("  submit create user_id=42 slug=two-sum lang=71 code=\"print(1)\" key=attempt-1")
	s.printLine("  submit poll id=<submissionId>")
	s.printLine("  problem get slug=two-sum")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}

func completer(commands map[string]command.Command) *readline.PrefixCompleter {
	actions := map[string][]string{}
	for _, cmd := range commands {
		actions[cmd.Service] = append(actions[cmd.Service], cmd.Action)
	}
	services := make([]string, 0, len(actions))
	for service := range actions {
		services = append(services, service)
	}
	sort.Strings(services)

	items := make([]readline.PrefixCompleterInterface, 0, len(services)+4)
	for _, service := range services {
		sort.Strings(actions[service])
		children := make([]readline.PrefixCompleterInterface, 0, len(actions[service]))
		for _, action := range actions[service] {
			children = append(children, readline.PcItem(action))
		}
		items = append(items, readline.PcItem(service, children...))
	}
	items = append(items,
		readline.PcItem("set", readline.PcItem("base"), readline.PcItem("timeout"), readline.PcItem("interval"), readline.PcItem("deadline")),
		readline.PcItem("show", readline.PcItem("state"), readline.PcItem("config")),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
	return readline.NewPrefixCompleter(items...)
}

func orEmpty(v string) string {
	if v == "" {
		return "<empty>"
	}
	return v
}
