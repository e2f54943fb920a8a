package evaluator

import (
	"strings"

	"github.com/wasilibs/go-re2"
	"golang.org/x/text/unicode/norm"
)

// PatternConfig binds a compiled pattern to its flag category and weight.
type PatternConfig struct {
	Pattern    *re2.Regexp
	Category   string
	RiskWeight int
	// Blocking categories force the task insecure regardless of total score.
	Blocking bool
}

const riskThreshold = 30

// systemCommandPatterns flag destructive or privileged OS operations.
// A match forces the task insecure.
var systemCommandPatterns = []PatternConfig{
	{
		Pattern:    re2.MustCompile(`(?i)\brm\s+(-[a-z]*\s+)*/`),
		Category:   "system_command",
		RiskWeight: 40,
		Blocking:   true,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\b(delete|remove|truncate|wipe)\b.{0,20}/(etc|bin|boot|dev|sys|proc|var)\b`),
		Category:   "system_command",
		RiskWeight: 40,
		Blocking:   true,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\b(sudo|doas)\b`),
		Category:   "system_command",
		RiskWeight: 30,
		Blocking:   true,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\b(shutdown|reboot|halt|poweroff)\b`),
		Category:   "system_command",
		RiskWeight: 30,
		Blocking:   true,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\b(mkfs|fdisk|dd\s+if=)\b`),
		Category:   "system_command",
		RiskWeight: 40,
		Blocking:   true,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\bchmod\s+777\b`),
		Category:   "system_command",
		RiskWeight: 25,
		Blocking:   true,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\bkill(all)?\s+(-9\s+)?\d*`),
		Category:   "system_command",
		RiskWeight: 25,
		Blocking:   true,
	},
}

// sensitiveDataPatterns flag references to credentials. They raise the risk
// score but do not by themselves block a task.
var sensitiveDataPatterns = []PatternConfig{
	{
		Pattern:    re2.MustCompile(`(?i)\bpassword\b`),
		Category:   "sensitive_data",
		RiskWeight: 15,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\bsecret\b`),
		Category:   "sensitive_data",
		RiskWeight: 15,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\bapi[_\s-]?key\b`),
		Category:   "sensitive_data",
		RiskWeight: 15,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\b(auth\s+)?token\b`),
		Category:   "sensitive_data",
		RiskWeight: 10,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\bcredentials?\b`),
		Category:   "sensitive_data",
		RiskWeight: 10,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\bprivate\s+key\b`),
		Category:   "sensitive_data",
		RiskWeight: 20,
	},
}

// injectionPatterns flag attempts to smuggle executable constructs through
// the natural-language surface. A match forces the task insecure.
var injectionPatterns = []PatternConfig{
	{
		Pattern:    re2.MustCompile("[;`]|\\$\\(|&&|\\|\\|"),
		Category:   "injection",
		RiskWeight: 30,
		Blocking:   true,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\b(eval|exec)\s*\(`),
		Category:   "injection",
		RiskWeight: 35,
		Blocking:   true,
	},
	{
		Pattern:    re2.MustCompile(`(?i)<\s*script[\s>]`),
		Category:   "injection",
		RiskWeight: 30,
		Blocking:   true,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\b(union\s+select|drop\s+table|insert\s+into|or\s+1\s*=\s*1)\b`),
		Category:   "injection",
		RiskWeight: 30,
		Blocking:   true,
	},
	{
		Pattern:    re2.MustCompile(`\{\{[^}]*\}\}|\$\{[^}]*\}|<%[^%]*%>`),
		Category:   "injection",
		RiskWeight: 30,
		Blocking:   true,
	},
	{
		Pattern:    re2.MustCompile(`(?i)\|\s*(sh|bash)\b`),
		Category:   "injection",
		RiskWeight: 35,
		Blocking:   true,
	},
}

// allPatterns is the scan order: blocking categories first.
var allPatterns = func() []PatternConfig {
	out := make([]PatternConfig, 0, len(systemCommandPatterns)+len(injectionPatterns)+len(sensitiveDataPatterns))
	out = append(out, systemCommandPatterns...)
	out = append(out, injectionPatterns...)
	out = append(out, sensitiveDataPatterns...)
	return out
}()

// normalizeForDetection folds the text to a canonical lowercase form so
// unicode tricks and control characters cannot hide a pattern.
func normalizeForDetection(s string) string {
	normalized := norm.NFKC.String(s)

	var result strings.Builder
	for _, r := range normalized {
		if r >= 32 || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}

	return strings.ToLower(result.String())
}

// scanResult is the outcome of the pattern scan over one task text.
type scanResult struct {
	Secure     bool
	RiskScore  int
	Categories []string
}

// scan runs every pattern table over the normalized text.
func scan(text string) scanResult {
	result := scanResult{Secure: true}
	if len(text) == 0 {
		return result
	}

	normalized := normalizeForDetection(text)
	seen := make(map[string]bool)

	for _, pc := range allPatterns {
		if pc.Pattern.MatchString(normalized) {
			result.RiskScore += pc.RiskWeight
			if pc.Blocking {
				result.Secure = false
			}
			if !seen[pc.Category] {
				seen[pc.Category] = true
				result.Categories = append(result.Categories, pc.Category)
			}
		}
	}

	if result.RiskScore >= riskThreshold {
		result.Secure = false
	}

	return result
}
