package service

import (
	"strings"
	"unicode"

	"bojmock/internal/runner/engine"
	"bojmock/internal/runner/model"
)

// NormalizeOutput converts CRLF to LF and trims trailing whitespace. Leading
// whitespace is significant.
func NormalizeOutput(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

// Grade turns one outcome into a case result. Pass stays nil when the case
// carries no expected output.
func Grade(c model.CaseInput, out engine.Outcome) model.CaseResult {
	res := model.CaseResult{
		Input:    c.Input,
		Expected: c.Expected,
		Stdout:   NormalizeOutput(out.Stdout),
		Stderr:   NormalizeOutput(out.Stderr),
		ExitCode: out.ExitCode,
		TimedOut: out.TimedOut,
		TimeMs:   out.Duration.Milliseconds(),
	}
	if c.Expected != nil {
		pass := !out.TimedOut &&
			out.ExitCode != nil && *out.ExitCode == 0 &&
			res.Stdout == NormalizeOutput(*c.Expected)
		res.Pass = &pass
	}
	return res
}
