package command

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"bojmock/internal/cli/state"
	"bojmock/internal/runner/model"
)

// Registry returns all CLI commands keyed by name.
func Registry() map[string]Command {
	commands := []Command{
		{
			Name:   "run",
			Method: http.MethodPost,
			Path:   "/api/v1/runs",
			Usage:  "run lang=py file=main.py input=\"1 2\" expected=3 [cases=cases.json]",
			Fields: []Field{
				{Name: "language", Aliases: []string{"lang"}, Prompt: "language", Required: true},
				{Name: "code", Prompt: "code", Required: true, FileAlt: "file"},
				{Name: "file", Aliases: []string{"source_file"}},
				{Name: "input", Aliases: []string{"stdin"}},
				{Name: "input_file"},
				{Name: "expected", Aliases: []string{"expect"}},
				{Name: "expected_file"},
				{Name: "cases", Aliases: []string{"cases_file"}},
				{Name: "session", Aliases: []string{"session_id"}},
				{Name: "participant", Aliases: []string{"participant_id"}},
				{Name: "problem", Aliases: []string{"problem_id"}},
			},
		},
		{
			Name:   "languages",
			Method: http.MethodGet,
			Path:   "/api/v1/languages",
			Usage:  "languages",
		},
		{
			Name:   "health",
			Method: http.MethodGet,
			Path:   "/healthz",
			Usage:  "health",
		},
	}

	out := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		out[cmd.Name] = cmd
	}
	return out
}

// Names lists command names in order.
func Names(commands map[string]Command) []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildRequest turns params into the request of cmd. Ids missing from params
// are taken from defaults.
func BuildRequest(cmd Command, params Params, defaults state.Defaults) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	spec := RequestSpec{Method: cmd.Method, Path: cmd.Path}
	if cmd.Name != "run" {
		return spec, nil
	}
	payload, err := buildRunPayload(params, defaults)
	if err != nil {
		return RequestSpec{}, err
	}
	spec.Body, err = json.Marshal(payload)
	if err != nil {
		return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
	}
	return spec, nil
}

func buildRunPayload(params Params, defaults state.Defaults) (model.RunRequest, error) {
	req := model.RunRequest{
		SessionID:     firstNonEmpty(params.Get("session"), defaults.SessionID),
		ParticipantID: firstNonEmpty(params.Get("participant"), defaults.ParticipantID),
		ProblemID:     firstNonEmpty(params.Get("problem"), defaults.ProblemID),
		LanguageID:    firstNonEmpty(params.Get("language"), defaults.Language),
	}
	if req.LanguageID == "" {
		return req, fmt.Errorf("language is required")
	}

	code, _, err := valueOrFile(params, "code", "file")
	if err != nil {
		return req, err
	}
	if code == "" {
		return req, fmt.Errorf("code or file is required")
	}
	req.SourceCode = code

	cases, err := buildCases(params)
	if err != nil {
		return req, err
	}
	req.Cases = cases
	return req, nil
}

// buildCases reads cases=<json file> or a single input/expected pair. A run
// with neither gets one case with empty stdin.
func buildCases(params Params) ([]model.CaseInput, error) {
	if path := params.Get("cases"); path != "" {
		var cases []model.CaseInput
		if err := parseJSONFile(path, &cases); err != nil {
			return nil, err
		}
		if len(cases) == 0 {
			return nil, fmt.Errorf("%s holds no cases", path)
		}
		return cases, nil
	}

	input, _, err := valueOrFile(params, "input", "input_file")
	if err != nil {
		return nil, err
	}
	if params.Has("input") {
		input = unescape(input)
	}
	c := model.CaseInput{Input: input}
	expected, ok, err := valueOrFile(params, "expected", "expected_file")
	if err != nil {
		return nil, err
	}
	if ok {
		if params.Has("expected") {
			expected = unescape(expected)
		}
		c.Expected = &expected
	}
	return []model.CaseInput{c}, nil
}

// unescape turns the two-character sequences \n and \t typed on the
// command line into real newlines and tabs.
func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
