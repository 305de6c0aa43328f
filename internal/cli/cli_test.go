package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/almanac/internal/scheduler"
)

// setupEnv points every path at a temp dir so no user config is touched.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("MEMORY_DIR", filepath.Join(dir, "memory"))
	t.Setenv("ALMANAC_CONFIG", filepath.Join(dir, "absent.yaml"))
	return dir
}

// resetFlags returns every flag to its default; cobra keeps parsed values
// between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), buf.String())
	return buf.String()
}

func TestVersionCommand(t *testing.T) {
	setupEnv(t)
	out := execute(t, "version")
	assert.True(t, strings.HasPrefix(out, "almanac dev"), out)
}

func TestMemoryCommands(t *testing.T) {
	setupEnv(t)

	assert.Contains(t, execute(t, "memory", "add", "note", "ship", "the", "ledger"), "(note)")
	execute(t, "memory", "add", "note", "ledger backups nightly")

	stats := execute(t, "memory", "stats")
	assert.Contains(t, stats, "L2 (long-term):  2")
	assert.Contains(t, stats, "total events:    2")

	query := execute(t, "memory", "query", "LEDGER")
	assert.Contains(t, query, "ship the ledger")
	assert.Contains(t, query, "ledger backups nightly")

	prefs := execute(t, "memory", "prefs")
	assert.Contains(t, prefs, "## note (2 events)")
	assert.Contains(t, prefs, "ledger")

	assert.Contains(t, execute(t, "memory", "patterns"), "time_of_day")
}

func TestKnowledgeCommands(t *testing.T) {
	setupEnv(t)

	assert.Contains(t, execute(t, "knowledge", "validate", "lessons", "retry.md", "retry with jitter"), "ADD")
	assert.Contains(t, execute(t, "knowledge", "write", "lessons", "retry.md", "retry with jitter"), "ADD")
	assert.Contains(t, execute(t, "knowledge", "write", "lessons", "retry.md", "retry with jitter"), "NOOP")
	assert.Contains(t, execute(t, "knowledge", "verify"), "All knowledge records are current.")

	hist := execute(t, "history")
	assert.Contains(t, hist, "lessons/retry.md NOOP: already present")
	assert.Contains(t, hist, "lessons/retry.md ADD: new file")
}

func TestGCCommands(t *testing.T) {
	setupEnv(t)

	assert.Contains(t, execute(t, "gc", "run"), "0 archived, 0 kept, 0 marked stale")

	out := execute(t, "gc", "temp", "--created", "2026-02-01", "--refs", "3", "--priority", "high")
	assert.Contains(t, out, "temperature: ")
	assert.Contains(t, out, "band: ")
}

func TestSyncAndReflect(t *testing.T) {
	setupEnv(t)

	assert.Contains(t, execute(t, "sync"), "No data to sync.")
	execute(t, "memory", "add", "note", "something to sync")
	assert.Contains(t, execute(t, "sync"), "synced 1 events (1 new), version 1")

	assert.Contains(t, execute(t, "reflect"), "reflection for ")
}

func TestHookStartWritesSessionStart(t *testing.T) {
	setupEnv(t)

	execute(t, "memory", "add", "prompt", "tune the ledger vacuum")
	rootCmd.SetIn(strings.NewReader(`{"session_id":"s9","source":"resume"}`))
	defer rootCmd.SetIn(nil)

	out := execute(t, "hook", "start")
	assert.Contains(t, out, `"hookEventName":"SessionStart"`)
	assert.Contains(t, out, "ledger")

	assert.Contains(t, execute(t, "memory", "query", "resume"), "session started (resume)")
}

func TestHookReportsUnusableConfig(t *testing.T) {
	dir := setupEnv(t)
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("categories: ["), 0o644))
	t.Setenv("ALMANAC_CONFIG", bad)
	t.Setenv("HOME", "")
	t.Setenv("MEMORY_DIR", "")

	rootCmd.SetIn(strings.NewReader(`{}`))
	defer rootCmd.SetIn(nil)

	out := execute(t, "hook", "start")
	assert.Contains(t, out, "almanac hook: parse config")
	assert.Contains(t, out, "defaults unusable")
	assert.Contains(t, out, `"hookEventName":"SessionStart"`)
}

func TestKnowledgeUnknownCategoryListsCategories(t *testing.T) {
	setupEnv(t)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"knowledge", "write", "actions", "x.md", "nope"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "knowledge categories: decisions, lessons, people")
}

func TestHistoryArchivedAndRecord(t *testing.T) {
	dir := setupEnv(t)

	logPath := filepath.Join(dir, "memory", "2026-01-01.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(logPath), 0o755))
	require.NoError(t, os.WriteFile(logPath, []byte("old log"), 0o644))
	old := time.Now().Add(-90 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(logPath, old, old))

	assert.Contains(t, execute(t, "history", "--archived"), "Nothing archived yet.")
	assert.Contains(t, execute(t, "gc", "run"), "1 archived")
	assert.Equal(t, "2026-01-01.md\n", execute(t, "history", "--archived"))

	execute(t, "knowledge", "write", "decisions", "db.md", "use sqlite for the ledger")
	execute(t, "knowledge", "write", "decisions", "db.md", "use sqlite for the ledger")
	assert.Equal(t, "decisions/db.md: ADD -> NOOP\n", execute(t, "history", "--record", "decisions/db.md"))
	assert.Contains(t, execute(t, "history", "--record", "decisions/other.md"), "No writes recorded")

	// Flags reset between runs, so plain history works again.
	assert.Contains(t, execute(t, "history"), "decisions/db.md")
}

func TestDaemonRunJob(t *testing.T) {
	setupEnv(t)

	execute(t, "memory", "add", "note", "run the sync job")
	assert.Equal(t, "sync done\n", execute(t, "daemon", "run", "sync"))
	assert.Equal(t, "sweep done\n", execute(t, "daemon", "run", "sweep"))
	assert.Contains(t, execute(t, "sync"), "version 2")

	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"daemon", "run", "bogus"})
	err := rootCmd.Execute()
	assert.ErrorIs(t, err, scheduler.ErrUnknownJob)
}
