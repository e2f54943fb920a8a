package translator

import (
	"fmt"
	"strings"
)

// Script bodies are generated from fixed templates; command text only ever
// enters a script through shQuote. Bodies must stay free of command
// substitution and backticks so the validation pass can reject those
// constructs unconditionally.

// shQuote wraps a value in single quotes, escaping embedded single quotes
// the POSIX way.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func generateBody(intent Intent, command string, p params) (string, error) {
	switch intent {
	case IntentFile:
		return fileBody(command, p)
	case IntentNetwork:
		return networkBody(p)
	case IntentData:
		return dataBody(command, p)
	default:
		return genericBody(command), nil
	}
}

func fileBody(command string, p params) (string, error) {
	if p.Path == "" {
		return "", &TranslationError{Stage: "parameters", Reason: "file task requires a path"}
	}

	op := p.Operation
	if op == "" {
		op = inferFileOperation(command)
	}

	switch op {
	case "read":
		return fmt.Sprintf("cat %s", shQuote(p.Path)), nil
	case "list":
		return fmt.Sprintf("ls -la %s", shQuote(p.Path)), nil
	case "stat":
		return fmt.Sprintf("ls -ld %s\nwc -c %s", shQuote(p.Path), shQuote(p.Path)), nil
	case "":
		return "", &TranslationError{Stage: "parameters", Reason: "file task requires an operation"}
	default:
		return "", &TranslationError{Stage: "parameters", Reason: fmt.Sprintf("unsupported file operation %q", op)}
	}
}

func networkBody(p params) (string, error) {
	if p.URL == "" {
		return "", &TranslationError{Stage: "parameters", Reason: "network task requires a url"}
	}
	if !strings.HasPrefix(p.URL, "http://") && !strings.HasPrefix(p.URL, "https://") {
		return "", &TranslationError{Stage: "parameters", Reason: fmt.Sprintf("unsupported url scheme in %q", p.URL)}
	}

	method := p.Method
	if method == "" {
		method = "GET"
	}
	switch method {
	case "GET", "HEAD", "POST":
	default:
		return "", &TranslationError{Stage: "parameters", Reason: fmt.Sprintf("unsupported http method %q", method)}
	}

	return fmt.Sprintf("curl -fsS --max-time 15 -X %s %s", method, shQuote(p.URL)), nil
}

func dataBody(command string, p params) (string, error) {
	if p.Path == "" {
		return "", &TranslationError{Stage: "parameters", Reason: "data task requires a path"}
	}

	lower := strings.ToLower(command)
	switch {
	case strings.Contains(lower, "count") && strings.Contains(lower, "word"):
		return fmt.Sprintf("wc -w %s", shQuote(p.Path)), nil
	case strings.Contains(lower, "count"):
		return fmt.Sprintf("wc -l %s", shQuote(p.Path)), nil
	case strings.Contains(lower, "sort"):
		return fmt.Sprintf("sort %s", shQuote(p.Path)), nil
	case strings.Contains(lower, "filter"), strings.Contains(lower, "grep"), strings.Contains(lower, "search"), strings.Contains(lower, "match"):
		if p.Pattern == "" {
			return "", &TranslationError{Stage: "parameters", Reason: "filter task requires a pattern"}
		}
		return fmt.Sprintf("grep -F -- %s %s", shQuote(p.Pattern), shQuote(p.Path)), nil
	case strings.Contains(lower, "extract"), strings.Contains(lower, "parse"):
		return fmt.Sprintf("head -n 100 %s", shQuote(p.Path)), nil
	default:
		return fmt.Sprintf("cat %s", shQuote(p.Path)), nil
	}
}

// genericBody acknowledges commands no template covers. The command text is
// quoted, never interpolated into shell syntax.
func genericBody(command string) string {
	return fmt.Sprintf("printf 'no local handler for task: %%s\\n' %s", shQuote(command))
}
