package translator

import "strings"

// Intent is the operation family a command translates into.
type Intent string

const (
	IntentFile    Intent = "file"
	IntentNetwork Intent = "network"
	IntentData    Intent = "data"
	IntentGeneric Intent = "generic"
)

// intentKeywords maps each intent to the words that vote for it. Buckets are
// checked in declaration order and the bucket with the most hits wins;
// network outranks file on a tie because url parameters are more specific
// than path guesses.
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentNetwork, []string{
		"fetch", "download", "http", "https", "url", "request", "website",
		"page", "api", "endpoint", "get", "post",
	}},
	{IntentData, []string{
		"count", "sort", "filter", "parse", "extract", "lines", "words",
		"csv", "json", "grep", "search", "match",
	}},
	{IntentFile, []string{
		"file", "read", "write", "list", "directory", "folder", "copy",
		"move", "create", "show", "cat", "stat",
	}},
}

// classifyIntent picks the intent bucket for a command.
func classifyIntent(command string) Intent {
	lower := strings.ToLower(command)
	words := strings.Fields(lower)

	best := IntentGeneric
	bestHits := 0

	for _, bucket := range intentKeywords {
		hits := 0
		for _, kw := range bucket.keywords {
			for _, w := range words {
				if strings.Trim(w, ".,:;!?\"'") == kw {
					hits++
				}
			}
		}
		if hits > bestHits {
			best = bucket.intent
			bestHits = hits
		}
	}

	return best
}
