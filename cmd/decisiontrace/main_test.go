package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decisiontrace/core/pkg/record"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"decisiontrace"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeCandidate(t *testing.T, dir, name string, cand map[string]any) string {
	t.Helper()
	data, err := json.Marshal(cand)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func logDecision(t *testing.T, logPath, input string) *record.DecisionRecord {
	t.Helper()
	code, stdout, stderr := runCLI(t, "log", "--log", logPath, "--json", "--input", input)
	require.Equal(t, 0, code, "stderr: %s", stderr)
	var rec record.DecisionRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &rec))
	return &rec
}

func TestEndToEndScenario(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dir := t.TempDir()
	logPath := filepath.Join(dir, "decision_log.jsonl")

	inputA := writeCandidate(t, dir, "a.json", map[string]any{
		"model": "m1", "prompt": "p1", "output": "o1",
	})
	inputB := writeCandidate(t, dir, "b.json", map[string]any{
		"model": "m2", "prompt": "p2", "output": "o2",
	})

	recA := logDecision(t, logPath, inputA)
	recB := logDecision(t, logPath, inputB)
	assert.Equal(t, recA.Hash, recB.PrevHash, "B chains to A's tail hash")

	// Intact log verifies with count 2.
	code, stdout, _ := runCLI(t, "verify", "--log", logPath)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Records intact: 2")

	// Replay returns the full record.
	code, stdout, _ = runCLI(t, "replay", "--log", logPath, recA.DecisionID)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, recA.DecisionID)
	assert.Contains(t, stdout, "p1")
	assert.Contains(t, stdout, "o1")
	assert.Contains(t, stdout, "intact")

	// Head is B's hash.
	code, stdout, _ = runCLI(t, "head", "--log", logPath)
	assert.Equal(t, 0, code)
	assert.Equal(t, recB.Hash, strings.TrimSpace(stdout))

	// Edit B's output directly on disk.
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"output":"o2"`, `"output":"oX"`, 1)
	require.NotEqual(t, string(data), tampered, "tamper target not found")
	require.NoError(t, os.WriteFile(logPath, []byte(tampered), 0644))

	// Verification now fails at position 2.
	code, stdout, _ = runCLI(t, "verify", "--log", logPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "content_tampered")
	assert.Contains(t, stdout, "Position:    2")
	assert.Contains(t, stdout, recB.DecisionID)
}

func TestVerifyEmptyLog(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	logPath := filepath.Join(t.TempDir(), "empty.jsonl")

	code, stdout, _ := runCLI(t, "verify", "--log", logPath)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Records intact: 0")
}

func TestVerifyJSONOutput(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.jsonl")
	logDecision(t, logPath, writeCandidate(t, dir, "a.json", map[string]any{
		"model": "m1", "prompt": "p1", "output": "o1",
	}))

	code, stdout, _ := runCLI(t, "verify", "--log", logPath, "--json")
	assert.Equal(t, 0, code)

	var report struct {
		OK    bool `json:"ok"`
		Count int  `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.True(t, report.OK)
	assert.Equal(t, 1, report.Count)
}

func TestLogRejectsInvalidCandidate(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.jsonl")
	input := writeCandidate(t, dir, "bad.json", map[string]any{
		"model": "m1", "prompt": "p1", "output": "o1", "confidence": 1.5,
	})

	code, _, stderr := runCLI(t, "log", "--log", logPath, "--input", input)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "confidence")

	// Nothing was written.
	_, err := os.Stat(logPath)
	assert.True(t, os.IsNotExist(err))
}

func TestReplayNotFound(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.jsonl")
	logDecision(t, logPath, writeCandidate(t, dir, "a.json", map[string]any{
		"model": "m1", "prompt": "p1", "output": "o1",
	}))

	code, stdout, _ := runCLI(t, "replay", "--log", logPath, "ghost-id")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "not found")
}

func TestExportRoundTrip(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.jsonl")
	bundlePath := filepath.Join(dir, "bundle.json")
	logDecision(t, logPath, writeCandidate(t, dir, "a.json", map[string]any{
		"model": "m1", "prompt": "p1", "output": "o1",
	}))

	code, stdout, stderr := runCLI(t, "export", "--log", logPath, "--out", bundlePath)
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Records:    1")

	code, stdout, _ = runCLI(t, "export", "--verify", bundlePath)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Bundle verified")

	// Corrupt the bundle and watch verification fail.
	data, err := os.ReadFile(bundlePath)
	require.NoError(t, err)
	corrupted := strings.Replace(string(data), `"output": "o1"`, `"output": "oX"`, 1)
	require.NotEqual(t, string(data), corrupted)
	require.NoError(t, os.WriteFile(bundlePath, []byte(corrupted), 0644))

	code, stdout, _ = runCLI(t, "export", "--verify", bundlePath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "FAILED")
}

func TestSQLiteBackendFlow(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "log.db")
	input := writeCandidate(t, dir, "a.json", map[string]any{
		"model": "m1", "prompt": "p1", "output": "o1",
	})

	code, _, stderr := runCLI(t, "log", "--log", dbPath, "--store", "sqlite", "--input", input)
	require.Equal(t, 0, code, "stderr: %s", stderr)

	code, stdout, _ := runCLI(t, "verify", "--log", dbPath, "--store", "sqlite")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Records intact: 1")
}

func TestDoctor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.jsonl")
	logDecision(t, logPath, writeCandidate(t, dir, "a.json", map[string]any{
		"model": "m1", "prompt": "p1", "output": "o1",
	}))

	code, stdout, _ := runCLI(t, "doctor", "--log", logPath)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "records:       1")
}

func TestUsageAndDispatch(t *testing.T) {
	code, _, stderr := runCLI(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command")

	code, stdout, _ := runCLI(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "decisiontrace <command>")

	code, stdout, _ = runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, version)
}
