package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/almanac/internal/config"
	"github.com/lazypower/almanac/internal/frontmatter"
	"github.com/lazypower/almanac/internal/ledger"
)

var testNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func newTestValidator(t *testing.T) (*Validator, config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Root = t.TempDir()
	require.NoError(t, cfg.Resolve())

	v, err := New(cfg)
	require.NoError(t, err)
	v.Now = func() time.Time { return testNow }
	return v, cfg
}

func readRecord(t *testing.T, cfg config.Config, category, file string) string {
	t.Helper()
	cat, ok := cfg.Category(category)
	require.True(t, ok)
	data, err := os.ReadFile(filepath.Join(cfg.CategoryDir(cat), file))
	require.NoError(t, err)
	return string(data)
}

func writeRaw(t *testing.T, cfg config.Config, category, file, content string) {
	t.Helper()
	cat, ok := cfg.Category(category)
	require.True(t, ok)
	dir := cfg.CategoryDir(cat)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
}

func TestValidateMissingFileIsAdd(t *testing.T) {
	v, _ := newTestValidator(t)
	res, err := v.Validate("lessons", "2026-04-02-caching.md", "Cache invalidation needs versioned keys")
	require.NoError(t, err)
	assert.Equal(t, ActionAdd, res.Action)
	assert.Equal(t, ReasonNew, res.Reason)
}

func TestValidateErrors(t *testing.T) {
	v, _ := newTestValidator(t)

	_, err := v.Validate("recipes", "x.md", "y")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	// Non-knowledge categories are rejected too.
	_, err = v.Validate("actions", "x.md", "y")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	for _, name := range []string{"", "..", "../escape.md", `sub\x.md`, "a/b.md"} {
		_, err = v.Validate("lessons", name, "y")
		assert.ErrorIs(t, err, ErrInvalidFilename, "filename %q", name)
	}
}

func TestWriteRejectsBadPathBeforeTouchingDisk(t *testing.T) {
	v, cfg := newTestValidator(t)

	_, err := v.Write("lessons", "../escape.md", "y", Metadata{})
	assert.ErrorIs(t, err, ErrInvalidFilename)
	_, err = v.Write("recipes", "x.md", "y", Metadata{})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	assert.NoFileExists(t, filepath.Join(cfg.Root, "escape.md"))
	assert.NoDirExists(t, filepath.Join(cfg.Root, "recipes"))
}

func TestWriteLifecycle(t *testing.T) {
	v, cfg := newTestValidator(t)

	res, err := v.Write("lessons", "a.md", "A", Metadata{})
	require.NoError(t, err)
	assert.Equal(t, ActionAdd, res.Action)

	first := readRecord(t, cfg, "lessons", "a.md")
	fields, body := frontmatter.Parse(first)
	assert.True(t, strings.HasPrefix(first, "---\ntitle: a\ndate: 2026-04-02\ncategory: lessons\npriority: low\nstatus: active\nlast_verified: 2026-04-02\n---\n"), first)
	assert.Len(t, fields, 6)
	assert.Equal(t, "a", fields.Value("title"))
	assert.Equal(t, "2026-04-02", fields.Value("date"))
	assert.Equal(t, "lessons", fields.Value("category"))
	assert.Equal(t, "low", fields.Value("priority"))
	assert.Equal(t, "active", fields.Value("status"))
	assert.Equal(t, "2026-04-02", fields.Value("last_verified"))
	assert.Equal(t, "\n## Content\nA", body)

	res, err = v.Write("lessons", "a.md", "A", Metadata{})
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, res.Action)
	assert.Equal(t, ReasonAlreadyPresent, res.Reason)
	assert.Equal(t, first, readRecord(t, cfg, "lessons", "a.md"), "NOOP must not mutate the file")

	res, err = v.Write("lessons", "a.md", "B, unrelated", Metadata{})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, res.Action)
	assert.Equal(t, "## Content\nA", res.Existing)

	updated := readRecord(t, cfg, "lessons", "a.md")
	assert.True(t, strings.HasSuffix(updated, "## Content\nB, unrelated\n\n> [Superseded 2026-04-02]: ## Content\nA..."), updated)
}

func TestWriteSimilarIsNoop(t *testing.T) {
	v, cfg := newTestValidator(t)
	_, err := v.Write("decisions", "db.md", "We store the ledger in sqlite using the pure go driver", Metadata{})
	require.NoError(t, err)
	before := readRecord(t, cfg, "decisions", "db.md")

	res, err := v.Write("decisions", "db.md", "ledger sqlite driver chosen", Metadata{})
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, res.Action)
	assert.Equal(t, ReasonSimilar, res.Reason)
	assert.Equal(t, before, readRecord(t, cfg, "decisions", "db.md"))
}

func TestWriteUpdateKeepsFirstHundredRunes(t *testing.T) {
	v, cfg := newTestValidator(t)
	long := strings.Repeat("日", 150)
	writeRaw(t, cfg, "people", "ana.md", "---\nstatus: active\n---\n"+long)

	res, err := v.Write("people", "ana.md", "prefers async review", Metadata{Title: "Ana", Priority: "🔴"})
	require.NoError(t, err)
	require.Equal(t, ActionUpdate, res.Action)

	got := readRecord(t, cfg, "people", "ana.md")
	assert.Contains(t, got, "> [Superseded 2026-04-02]: "+strings.Repeat("日", 100)+"...")
	assert.NotContains(t, got, strings.Repeat("日", 101))

	fields, _ := frontmatter.Parse(got)
	assert.Equal(t, "Ana", fields.Value("title"))
	assert.Equal(t, "high", fields.Value("priority"))
}

func TestWriteConflictAppends(t *testing.T) {
	v, cfg := newTestValidator(t)
	original := "---\ntitle: tabs\nstatus: conflict\n---\nUse tabs everywhere"
	writeRaw(t, cfg, "decisions", "tabs.md", original)

	res, err := v.Write("decisions", "tabs.md", "Spaces only from now", Metadata{})
	require.NoError(t, err)
	assert.Equal(t, ActionConflict, res.Action)
	assert.Equal(t, "Use tabs everywhere", res.Existing)

	got := readRecord(t, cfg, "decisions", "tabs.md")
	assert.Equal(t, original+"\n\n> CONFLICT (2026-04-02): contradicts the content above\nSpaces only from now", got)
}

func TestWriteCreatesCategoryDir(t *testing.T) {
	v, cfg := newTestValidator(t)
	cat, _ := cfg.Category("people")
	_, err := os.Stat(cfg.CategoryDir(cat))
	require.True(t, os.IsNotExist(err))

	_, err = v.Write("people", "bo.md", "Bo maintains the deploy tooling", Metadata{})
	require.NoError(t, err)
	readRecord(t, cfg, "people", "bo.md")
}

func TestWriteRecordsLedger(t *testing.T) {
	v, _ := newTestValidator(t)
	db, err := ledger.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	v.Ledger = db

	for _, c := range []string{"first insight here", "first insight here", "completely different matter"} {
		_, err := v.Write("lessons", "x.md", c, Metadata{})
		require.NoError(t, err)
	}

	actions, err := db.KnowledgeActions("lessons", "x.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"ADD", "NOOP", "UPDATE"}, actions)
}

type alwaysDifferent struct{}

func (alwaysDifferent) Similar(string, string) bool { return false }

func TestPluggableMatcher(t *testing.T) {
	v, _ := newTestValidator(t)
	_, err := v.Write("lessons", "m.md", "retry with jittered backoff", Metadata{})
	require.NoError(t, err)

	v.Matcher = alwaysDifferent{}
	res, err := v.Validate("lessons", "m.md", "backoff jittered retry")
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, res.Action)
}

func TestVerifyAll(t *testing.T) {
	v, cfg := newTestValidator(t)
	writeRaw(t, cfg, "lessons", "old.md", "---\nstatus: active\nlast_verified: 2026-02-01\n---\nbody")
	writeRaw(t, cfg, "lessons", "fresh.md", "---\nstatus: active\nlast_verified: 2026-03-20\n---\nbody")
	writeRaw(t, cfg, "decisions", "gone.md", "---\nstatus: superseded\nlast_verified: 2025-01-01\n---\nbody")
	writeRaw(t, cfg, "people", "never.md", "---\nstatus: active\n---\nbody")
	writeRaw(t, cfg, "people", "stale.md", "---\nstatus: conflict\nlast_verified: 2026-01-01\n---\nbody")
	writeRaw(t, cfg, "people", "notes.txt", "---\nlast_verified: 2020-01-01\n---\nbody")

	got, err := v.VerifyAll()
	require.NoError(t, err)
	assert.Equal(t, []StaleRecord{
		{Category: "lessons", File: "old.md", Days: 60},
		{Category: "people", File: "stale.md", Days: 91},
	}, got)
}

func TestVerifyAllMissingDirs(t *testing.T) {
	v, _ := newTestValidator(t)
	got, err := v.VerifyAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}
