package translator

import (
	"strings"

	"github.com/wasilibs/go-re2"
)

// The validation pass is a denylist over the generated script body, before
// the runtime preamble is attached. It is defense in depth behind the
// evaluator's screen and the sandbox boundary: templates should never emit
// these constructs, and a script that carries one is rejected rather than
// shipped to a worker. Validation is a pure function of the body text.

type denyRule struct {
	pattern *re2.Regexp
	reason  string
}

var denyRules = []denyRule{
	{re2.MustCompile(`(?i)\b(eval|exec)\b`), "dynamic evaluation"},
	{re2.MustCompile("`|\\$\\("), "command substitution"},
	{re2.MustCompile(`(?i)\b(printenv|env)\b`), "environment access"},
	{re2.MustCompile(`/proc/[0-9a-z]+/environ`), "environment access"},
	{re2.MustCompile(`(?i)\bkill(all)?\b`), "process control"},
	{re2.MustCompile(`(?i)\b(nohup|setsid|disown)\b`), "process control"},
	{re2.MustCompile(`&\s*$`), "background execution"},
	{re2.MustCompile(`\.\./`), "path traversal"},
	{re2.MustCompile(`>+\s*/dev/`), "device write"},
	{re2.MustCompile(`(?i)\bdd\b.*\bof=/dev/`), "device write"},
	{re2.MustCompile(`(?i)\brm\s+(-[a-z]+\s+)*/`), "destructive removal"},
	{re2.MustCompile(`(?i)\b(chmod|chown)\b`), "permission change"},
	{re2.MustCompile(`(?i)\b(sudo|su)\b`), "privilege escalation"},
}

// ValidationError reports why a generated script was rejected.
type ValidationError struct {
	Line   int
	Reason string
}

func (e *ValidationError) Error() string {
	return "script validation failed: " + e.Reason
}

// validateBody checks every line of the generated body against the denylist.
func validateBody(body string) *ValidationError {
	for i, line := range strings.Split(body, "\n") {
		for _, rule := range denyRules {
			if rule.pattern.MatchString(line) {
				return &ValidationError{Line: i + 1, Reason: rule.reason}
			}
		}
	}
	return nil
}
