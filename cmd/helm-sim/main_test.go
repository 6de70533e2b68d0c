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

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/audit"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/config"
)

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"helm-sim"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func decodeReport(t *testing.T, out string) sessionReport {
	t.Helper()
	var r sessionReport
	require.NoError(t, json.Unmarshal([]byte(out), &r), out)
	return r
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := run(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "USAGE")

	code, stdout, _ := run(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "investor")

	code, _, stderr = run(t, "launch")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: launch")
}

func TestDemo(t *testing.T) {
	code, stdout, stderr := run(t, "demo", "-json")
	require.Equal(t, 0, code, stderr)

	r := decodeReport(t, stdout)
	assert.Equal(t, uint32(42), r.Seed)
	assert.Len(t, r.Packets, 5)
	require.Len(t, r.Receipts, 1)
	assert.True(t, r.Verification.Valid)
	assert.False(t, r.Frozen)
	assert.Equal(t, 4, r.LedgerLength)
	assert.Len(t, r.LedgerHead, 64)
}

func TestDemo_PacketsFollowSeed(t *testing.T) {
	ids := func(args ...string) []string {
		code, stdout, stderr := run(t, append([]string{"demo", "-json"}, args...)...)
		require.Equal(t, 0, code, stderr)
		r := decodeReport(t, stdout)
		out := make([]string, len(r.Packets))
		for i, p := range r.Packets {
			out[i] = p.ID
		}
		return out
	}
	a := ids()
	assert.Equal(t, a, ids())
	assert.NotEqual(t, a, ids("-seed", "7"))
}

func TestDemo_Profile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile_retiree.yaml"), []byte(`name: retiree
settings:
  persona: retiree
  stress_level: busy
  autonomy_scope: observe
  budget_cap: "250.00"
`), 0o644))

	code, stdout, stderr := run(t, "demo", "-json", "-profile", "retiree", "-profile-dir", dir)
	require.Equal(t, 0, code, stderr)
	r := decodeReport(t, stdout)
	assert.Len(t, r.Receipts, 1)

	code, _, _ = run(t, "demo", "-profile", "ghost", "-profile-dir", dir)
	assert.Equal(t, 2, code)
}

func TestProfiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile_founder.yaml"), []byte(`name: founder
description: Busy founder
settings:
  persona: founder
  stress_level: busy
  autonomy_scope: delegated
  budget_cap: "5000.00"
`), 0o644))

	code, stdout, stderr := run(t, "profiles", "-json", "-profile-dir", dir)
	require.Equal(t, 0, code, stderr)
	var list []config.Profile
	require.NoError(t, json.Unmarshal([]byte(stdout), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "founder", list[0].Name)

	code, stdout, _ = run(t, "profiles", "-profile-dir", t.TempDir())
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "No profiles")
}

func TestDemo_SeedOutOfRange(t *testing.T) {
	for _, seed := range []string{"-5", "-2", "4294967296"} {
		code, stdout, stderr := run(t, "demo", "-seed", seed)
		assert.Equal(t, 2, code, seed)
		assert.Empty(t, stdout, seed)
		assert.Contains(t, stderr, "out of range", seed)
	}
}

func TestDemo_RandomSeed(t *testing.T) {
	code, stdout, stderr := run(t, "demo", "-json", "-random-seed")
	require.Equal(t, 0, code, stderr)
	assert.Len(t, decodeReport(t, stdout).Packets, 5)
}

func TestDemo_TextOutput(t *testing.T) {
	code, stdout, _ := run(t, "demo")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "PACKETS:")
	assert.Contains(t, stdout, "VALID")
}

func TestDemo_BadConfig(t *testing.T) {
	code, _, stderr := run(t, "demo", "-config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Error:")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReplay(t *testing.T) {
	script := writeFile(t, "intents.json", `{
  "seed": 42,
  "intents": [
    {"type": "drill_down", "category": "travel"},
    {"type": "approve", "category": "travel"},
    {"type": "deny", "category": "gifts"},
    {"type": "change_settings", "patch": {"stressLevel": "busy", "budgetCap": "900.00"}}
  ]
}`)
	code, stdout, stderr := run(t, "replay", "-script", script, "-json")
	require.Equal(t, 0, code, stderr)

	r := decodeReport(t, stdout)
	require.Len(t, r.Outcomes, 4)
	for _, o := range r.Outcomes {
		assert.Equal(t, "applied", string(o.Status), o.Intent)
	}
	require.NotNil(t, r.Outcomes[1].Receipt)
	assert.Len(t, r.Receipts, 1)
	assert.True(t, r.Verification.Valid)
	// started + 4 intents + executed + receipt + denied
	assert.Equal(t, 8, r.LedgerLength)
}

func TestReplay_SchemaRejects(t *testing.T) {
	cases := map[string]string{
		"unknown type":      `{"intents": [{"type": "launch"}]}`,
		"unknown category":  `{"intents": [{"type": "drill_down", "category": "pets"}]}`,
		"approve no target": `{"intents": [{"type": "approve"}]}`,
		"extra field":       `{"intents": [], "mode": "fast"}`,
		"missing intents":   `{"seed": 1}`,
		"bad amount":        `{"intents": [{"type": "change_settings", "patch": {"budgetCap": "-3"}}]}`,
		"not json":          `intents:`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			code, _, stderr := run(t, "replay", "-script", writeFile(t, "s.json", body))
			assert.Equal(t, 2, code)
			assert.Contains(t, stderr, "Error:")
		})
	}
}

func TestReplay_RequiresScript(t *testing.T) {
	code, _, stderr := run(t, "replay")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--script is required")
}

func TestInvestor(t *testing.T) {
	code, stdout, stderr := run(t, "investor", "-json")
	require.Equal(t, 0, code, stderr)

	var r investorReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &r))
	assert.Len(t, r.Pipelines, 5)
	assert.Len(t, r.Attacks, 7)
	assert.Equal(t, "cfo", r.Consensus.Winner)
	assert.Len(t, r.Blocks, 5+7+1+1)
	assert.True(t, r.Verification.Valid)
	assert.Equal(t, 14, r.Verification.Blocks)
	assert.True(t, r.ProofValid)
	assert.Equal(t, r.Blocks[13].MerkleRoot, r.Proof.MerkleRoot)
}

func TestInvestor_ProveEarlierBlock(t *testing.T) {
	code, stdout, stderr := run(t, "investor", "-json", "-prove", "10")
	require.Equal(t, 0, code, stderr)

	var r investorReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &r))
	assert.True(t, r.ProofValid)
	assert.Equal(t, r.Blocks[10].MerkleRoot, r.Proof.MerkleRoot)

	code, _, _ = run(t, "investor", "-prove", "99")
	assert.Equal(t, 2, code)
}

func TestInvestor_Ed25519Signer(t *testing.T) {
	cfg := writeFile(t, "config.yaml", "signer:\n  mode: ed25519\n  seed: investor-demo\nmerkle_window: 4\n")
	code, stdout, stderr := run(t, "investor", "-json", "-config", cfg)
	require.Equal(t, 0, code, stderr)

	var r investorReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &r))
	assert.True(t, r.Verification.Valid)
	assert.True(t, r.ProofValid)
	assert.Len(t, r.Proof.ProofPath, 2)
}

func TestInvestor_UnknownCategory(t *testing.T) {
	code, _, stderr := run(t, "investor", "-category", "pets")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unknown category")
}

func TestTamper(t *testing.T) {
	code, stdout, stderr := run(t, "tamper", "-json")
	require.Equal(t, 1, code, stderr)

	r := decodeReport(t, stdout)
	assert.True(t, r.Frozen)
	assert.False(t, r.Verification.Valid)
	require.NotNil(t, r.Verification.BrokenAt)
	assert.Equal(t, 1, *r.Verification.BrokenAt)
}

func TestTamper_Receipt(t *testing.T) {
	code, stdout, stderr := run(t, "tamper", "-receipt", "-index", "0", "-json")
	require.Equal(t, 1, code, stderr)
	assert.True(t, decodeReport(t, stdout).Frozen)
}

func TestTamper_IndexOutOfRange(t *testing.T) {
	code, _, _ := run(t, "tamper", "-index", "99")
	assert.Equal(t, 2, code)
}

func TestExport(t *testing.T) {
	out := filepath.Join(t.TempDir(), "pack.zip")
	code, stdout, stderr := run(t, "export", "-out", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "sha256:")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	events, manifest, err := audit.ReadPack(data)
	require.NoError(t, err)
	assert.Len(t, events, 4)
	assert.Equal(t, 4, manifest.EventCount)
	assert.True(t, manifest.Verification.Valid)
}

func TestSaveAndResume_SQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, "config.yaml", "store:\n  driver: sqlite\n  dsn: "+filepath.Join(dir, "sim.db")+"\n")

	code, _, stderr := run(t, "demo", "-config", cfg, "-save", "sess-a")
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := run(t, "resume", "-config", cfg, "-list")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "sess-a", strings.TrimSpace(stdout))

	code, stdout, stderr = run(t, "resume", "-config", cfg, "-id", "sess-a", "-json")
	require.Equal(t, 0, code, stderr)
	r := decodeReport(t, stdout)
	assert.Len(t, r.Receipts, 1)
	assert.True(t, r.Verification.Valid)

	code, _, _ = run(t, "resume", "-config", cfg, "-id", "sess-b")
	assert.Equal(t, 2, code)
}
