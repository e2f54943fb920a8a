package translator

import (
	"strings"

	"github.com/wasilibs/go-re2"
)

// Parameter extraction recognizes two forms: explicit key:value markers
// ("path: /data/report.txt") and bare values the intent implies (a URL, a
// token that looks like a file path). Explicit markers always win.

var (
	pathMarkerRe      = re2.MustCompile(`(?i)\bpath:\s*(\S+)`)
	operationMarkerRe = re2.MustCompile(`(?i)\boperation:\s*([a-z]+)`)
	urlMarkerRe       = re2.MustCompile(`(?i)\burl:\s*(\S+)`)
	methodMarkerRe    = re2.MustCompile(`(?i)\bmethod:\s*([a-z]+)`)
	patternMarkerRe   = re2.MustCompile(`(?i)\bpattern:\s*(\S+)`)

	bareURLRe = re2.MustCompile(`https?://[^\s"']+`)
	// A token with a directory separator or a short extension reads as a path.
	barePathRe = re2.MustCompile(`(^|\s)((?:[A-Za-z0-9_.\-]+/)*[A-Za-z0-9_\-]+\.[A-Za-z0-9]{1,5})(\s|$)`)
)

type params struct {
	Path      string
	Operation string
	URL       string
	Method    string
	Pattern   string
}

func extractParams(command string) params {
	var p params

	if m := pathMarkerRe.FindStringSubmatch(command); m != nil {
		p.Path = strings.Trim(m[1], "\"'")
	} else if m := barePathRe.FindStringSubmatch(command); m != nil {
		p.Path = m[2]
	}

	if m := operationMarkerRe.FindStringSubmatch(command); m != nil {
		p.Operation = strings.ToLower(m[1])
	}

	if m := urlMarkerRe.FindStringSubmatch(command); m != nil {
		p.URL = strings.Trim(m[1], "\"'")
	} else if m := bareURLRe.FindString(command); m != "" {
		p.URL = m
	}

	if m := methodMarkerRe.FindStringSubmatch(command); m != nil {
		p.Method = strings.ToUpper(m[1])
	}

	if m := patternMarkerRe.FindStringSubmatch(command); m != nil {
		p.Pattern = strings.Trim(m[1], "\"'")
	}

	return p
}

// inferFileOperation maps command verbs to a file operation when the caller
// did not pass an explicit operation: marker.
func inferFileOperation(command string) string {
	lower := strings.ToLower(command)
	switch {
	case strings.Contains(lower, "list") || strings.Contains(lower, "directory") || strings.Contains(lower, "folder"):
		return "list"
	case strings.Contains(lower, "stat") || strings.Contains(lower, "size") || strings.Contains(lower, "info"):
		return "stat"
	case strings.Contains(lower, "read") || strings.Contains(lower, "show") || strings.Contains(lower, "cat") || strings.Contains(lower, "open"):
		return "read"
	default:
		return ""
	}
}
