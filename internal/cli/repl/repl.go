// Package repl is the interactive shell of the runner CLI.
package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bojmock/internal/cli/command"
	httpclient "bojmock/internal/cli/http"
	"bojmock/internal/cli/state"
	"bojmock/internal/runner/model"
	pkgerrors "bojmock/pkg/errors"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const prompt = "bojmock> "

// ErrExit is returned by Execute for exit and quit.
var ErrExit = errors.New("exit")

// Session holds REPL state.
type Session struct {
	client     *httpclient.Client
	commands   map[string]command.Command
	defaults   *state.Defaults
	statePath  string
	prettyJSON bool
	out        io.Writer
	// ask reads a missing value; nil turns missing values into errors.
	ask func(label string) (string, error)
}

func New(client *httpclient.Client, commands map[string]command.Command, defaults *state.Defaults, statePath string, prettyJSON bool, out io.Writer) *Session {
	return &Session{
		client:     client,
		commands:   commands,
		defaults:   defaults,
		statePath:  statePath,
		prettyJSON: prettyJSON,
		out:        out,
	}
}

// Run reads lines until exit or end of input.
func (s *Session) Run(ctx context.Context, historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline failed: %w", err)
	}
	defer func() { _ = rl.Close() }()
	s.out = rl.Stdout()
	s.ask = func(label string) (string, error) {
		rl.SetPrompt(label + ": ")
		defer rl.SetPrompt(prompt)
		line, err := rl.Readline()
		if err != nil {
			return "", fmt.Errorf("read input failed: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		err = s.Execute(ctx, line)
		if errors.Is(err, ErrExit) {
			s.printLine("bye")
			return nil
		}
		if err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) completer() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("set",
			readline.PcItem("base"),
			readline.PcItem("timeout"),
			readline.PcItem("session"),
			readline.PcItem("participant"),
			readline.PcItem("problem"),
			readline.PcItem("lang"),
		),
		readline.PcItem("show", readline.PcItem("config")),
	}
	for _, name := range command.Names(s.commands) {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

// Execute handles one input line.
func (s *Session) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	switch {
	case line == "exit" || line == "quit":
		return ErrExit
	case line == "help":
		s.printHelp()
		return nil
	case line == "set" || strings.HasPrefix(line, "set "):
		return s.handleSet(strings.Fields(strings.TrimPrefix(line, "set")))
	case line == "show" || strings.HasPrefix(line, "show "):
		return s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show")))
	}
	return s.handleCommand(ctx, line)
}

func (s *Session) handleSet(parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("usage: set base|timeout|session|participant|problem|lang <value>")
	}
	key, value := parts[0], parts[1]
	switch key {
	case "base":
		s.client.SetBaseURL(value)
		s.printLine("base set to %s", s.client.BaseURL())
		return nil
	case "timeout":
		dur, err := time.ParseDuration(value)
		if err != nil || dur <= 0 {
			return fmt.Errorf("invalid duration: %s", value)
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
		return nil
	case "session":
		s.defaults.SessionID = value
	case "participant":
		s.defaults.ParticipantID = value
	case "problem":
		s.defaults.ProblemID = value
	case "lang", "language":
		s.defaults.Language = value
	default:
		return fmt.Errorf("unknown set command: %s", key)
	}
	if err := state.Save(s.statePath, *s.defaults); err != nil {
		return err
	}
	s.printLine("%s set to %s", key, value)
	return nil
}

func (s *Session) handleShow(args string) error {
	if args != "config" {
		return fmt.Errorf("usage: show config")
	}
	s.printLine("base:        %s", s.client.BaseURL())
	s.printLine("timeout:     %s", s.client.Timeout())
	s.printLine("session:     %s", s.defaults.SessionID)
	s.printLine("participant: %s", s.defaults.ParticipantID)
	s.printLine("problem:     %s", s.defaults.ProblemID)
	s.printLine("lang:        %s", orNone(s.defaults.Language))
	s.printLine("statePath:   %s", s.statePath)
	return nil
}

func (s *Session) handleCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}
	cmd, ok := s.commands[tokens[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s (try help)", tokens[0])
	}
	params, err := command.ParseArgs(tokens[1:])
	if err != nil {
		return err
	}
	params.Canonicalize(cmd.Fields)
	if s.defaults.Language != "" && !params.Has("language") {
		params.Set("language", s.defaults.Language)
	}
	if err := s.promptMissing(cmd, params); err != nil {
		return err
	}

	req, err := command.BuildRequest(cmd, params, *s.defaults)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(cmd, resp)
	return nil
}

func (s *Session) promptMissing(cmd command.Command, params command.Params) error {
	for _, field := range params.Missing(cmd.Fields) {
		if s.ask == nil {
			return fmt.Errorf("%s is required", field.Name)
		}
		value, err := s.ask(field.Prompt)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

type envelope struct {
	Code    pkgerrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Details map[string]any      `json:"details"`
	TraceID string              `json:"trace_id"`
}

type runData struct {
	RunID     string             `json:"run_id"`
	Cases     []model.CaseResult `json:"per_case_results"`
	AllPassed bool               `json:"all_passed"`
}

type languageData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Compiled bool   `json:"compiled"`
}

func (s *Session) renderResponse(cmd command.Command, resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s) request=%s", resp.StatusCode, resp.Duration.Round(time.Millisecond), resp.RequestID)
	if len(resp.Body) == 0 {
		return
	}
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
		}
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		s.printLine("%s", string(resp.Body))
		return
	}
	if env.Code != pkgerrors.Success {
		s.printLine("error %d: %s", env.Code, env.Message)
		if stderr, ok := env.Details["stderr"].(string); ok && stderr != "" {
			s.printLine("%s", strings.TrimRight(stderr, "\n"))
		}
		return
	}

	switch cmd.Name {
	case "run":
		var data runData
		if err := json.Unmarshal(env.Data, &data); err == nil {
			s.renderRun(data)
		}
	case "languages":
		var langs []languageData
		if err := json.Unmarshal(env.Data, &langs); err == nil {
			for _, l := range langs {
				kind := "interpreted"
				if l.Compiled {
					kind = "compiled"
				}
				s.printLine("%-6s %-12s %s", l.ID, l.Name, kind)
			}
		}
	}
}

func (s *Session) renderRun(data runData) {
	s.printLine("run %s all_passed=%t", data.RunID, data.AllPassed)
	for i, c := range data.Cases {
		s.printLine("case %d: %-7s exit=%s %dms", i+1, verdict(c), exitText(c.ExitCode), c.TimeMs)
		if c.Pass != nil && *c.Pass {
			continue
		}
		if c.Expected != nil {
			s.printLine("  expected: %q", *c.Expected)
		}
		s.printLine("  stdout:   %q", c.Stdout)
		if c.Stderr != "" {
			s.printLine("  stderr:   %q", c.Stderr)
		}
	}
}

func verdict(c model.CaseResult) string {
	switch {
	case c.TimedOut:
		return "TIMEOUT"
	case c.Pass == nil:
		return "DONE"
	case *c.Pass:
		return "PASS"
	default:
		return "FAIL"
	}
}

func exitText(code *int) string {
	if code == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *code)
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}

func (s *Session) printHelp() {
	s.printLine("commands:")
	for _, name := range command.Names(s.commands) {
		s.printLine("  %s", s.commands[name].Usage)
	}
	s.printLine("system: help | exit | set base|timeout|session|participant|problem|lang <value> | show config")
	s.printLine("input and expected accept \\n for newlines; cases=<file> takes a JSON list of {input, expected}")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}
