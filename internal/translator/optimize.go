package translator

import (
	"strings"
)

// The optimization pass runs after validation: it strips comment and blank
// lines from the body, then attaches the runtime preamble and timing
// instrumentation. The preamble restricts the script's environment; the
// instrumentation reports wall-clock duration on stderr so worker metrics
// do not have to parse stdout.

// stripComments drops blank lines and full-line comments from the body.
func stripComments(body string) string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// wrap produces the final script. The wrapper is trusted fixed text; only
// the already-validated body varies.
func wrap(body string) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("set -eu\n")
	b.WriteString("umask 077\n")
	b.WriteString("PATH=/usr/local/bin:/usr/bin:/bin\n")
	b.WriteString("export PATH\n")
	b.WriteString("_start=$(date +%s)\n")
	b.WriteString("trap 'echo \"script exited with status $?\" >&2' EXIT\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("_end=$(date +%s)\n")
	b.WriteString("echo \"elapsed: $((_end - _start))s\" >&2\n")
	return b.String()
}
