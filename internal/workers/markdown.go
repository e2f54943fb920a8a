package workers

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/aatumaykin/nexos/internal/logger"
)

// Network tasks fetch pages; raw HTML is useless to the caller, so the pool
// converts it to markdown host-side before returning the result.

func looksLikeHTML(s string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(s))
	if strings.HasPrefix(trimmed, "<!doctype html") || strings.HasPrefix(trimmed, "<html") {
		return true
	}
	return strings.Contains(trimmed, "<body") || strings.Contains(trimmed, "<div") || strings.Contains(trimmed, "<p>")
}

func htmlToMarkdown(html string, log *logger.Logger) string {
	opts := &md.Options{
		HeadingStyle:    "atx",
		CodeBlockStyle:  "fenced",
		EmDelimiter:     "*",
		StrongDelimiter: "**",
	}

	converter := md.NewConverter("", true, opts)
	converter.Keep("a", "img")

	converter.AddRules(md.Rule{
		Filter: []string{"nav", "footer", "aside", "script", "style"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			return new("")
		},
	})

	markdown, err := converter.ConvertString(html)
	if err != nil {
		log.Warn("failed to convert html output to markdown",
			logger.Field{Key: "error", Value: err})
		return ""
	}

	for strings.Contains(markdown, "\n\n\n") {
		markdown = strings.ReplaceAll(markdown, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(markdown)
}
