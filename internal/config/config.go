package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all almanac configuration.
// Defaults come from Default(); Load() overlays a YAML file and then the environment.
type Config struct {
	Root       string          `yaml:"root" env:"MEMORY_DIR"`
	ArchiveDir string          `yaml:"archive_dir" env:"ALMANAC_ARCHIVE_DIR"`
	Timezone   string          `yaml:"timezone" env:"ALMANAC_TIMEZONE"` // IANA name, "" = local
	Store      StoreConfig     `yaml:"store"`
	Sync       SyncConfig      `yaml:"sync"`
	Ledger     LedgerConfig    `yaml:"ledger"`
	Knowledge  KnowledgeConfig `yaml:"knowledge"`
	Schedule   ScheduleConfig  `yaml:"schedule"`
	Log        LogConfig       `yaml:"log"`
	Categories []Category      `yaml:"categories"`
}

type StoreConfig struct {
	Path         string `yaml:"path" env:"ALMANAC_STORE"`
	ImmediateMax int    `yaml:"immediate_max" env:"ALMANAC_STORE_IMMEDIATE_MAX"` // L0
	ShortTermMax int    `yaml:"short_term_max" env:"ALMANAC_STORE_SHORT_TERM_MAX"` // L1
}

type SyncConfig struct {
	StatePath string `yaml:"state_path" env:"ALMANAC_SYNC_STATE"`
}

type LedgerConfig struct {
	Enabled bool   `yaml:"enabled" env:"ALMANAC_LEDGER_ENABLED"`
	Path    string `yaml:"path" env:"ALMANAC_LEDGER"`
}

type KnowledgeConfig struct {
	StaleAfterDays int    `yaml:"stale_after_days" env:"ALMANAC_STALE_AFTER_DAYS"`
	FilePattern    string `yaml:"file_pattern" env:"ALMANAC_FILE_PATTERN"` // glob for record files
}

type ScheduleConfig struct {
	Sweep      string `yaml:"sweep" env:"ALMANAC_SCHEDULE_SWEEP"`
	Reflection string `yaml:"reflection" env:"ALMANAC_SCHEDULE_REFLECTION"`
	Sync       string `yaml:"sync" env:"ALMANAC_SCHEDULE_SYNC"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"ALMANAC_LOG_LEVEL"` // debug, info, warn, error
	JSON  bool   `yaml:"json" env:"ALMANAC_LOG_JSON"`
}

// Category is one row of the category table: where its records live and how
// long they are kept. Every component that needs a per-category path reads it
// from here.
type Category struct {
	Name                string            `yaml:"name"`
	Dir                 string            `yaml:"dir"` // relative to Root; "" = Root itself
	MaxAge              MaxAge            `yaml:"max_age"`
	ProtectIfReferenced bool              `yaml:"protect_if_referenced"`
	PriorityMaxAge      map[string]MaxAge `yaml:"priority_max_age,omitempty"`
	Knowledge           bool              `yaml:"knowledge"` // subject to CRUD validation and staleness
}

// MaxAge is an archival age in days. The zero value means never archive.
type MaxAge struct {
	Days    int
	Limited bool
}

// Days returns a MaxAge of n days.
func Days(n int) MaxAge { return MaxAge{Days: n, Limited: true} }

// Never is the never-archive MaxAge.
var Never = MaxAge{}

// IsNever reports whether records governed by m are never archived.
func (m MaxAge) IsNever() bool { return !m.Limited }

func (m MaxAge) String() string {
	if m.IsNever() {
		return "never"
	}
	return strconv.Itoa(m.Days)
}

// UnmarshalYAML accepts either an integer day count or the string "never".
func (m *MaxAge) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("max_age: expected scalar, got kind %d", node.Kind)
	}
	v := strings.TrimSpace(node.Value)
	if strings.EqualFold(v, "never") || v == "" || v == "~" || v == "null" {
		*m = Never
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fmt.Errorf("max_age: %q is neither a day count nor \"never\"", node.Value)
	}
	*m = Days(n)
	return nil
}

// MarshalYAML writes "never" or the day count.
func (m MaxAge) MarshalYAML() (any, error) {
	if m.IsNever() {
		return "never", nil
	}
	return m.Days, nil
}

// Default returns a Config with sensible defaults. Root is left empty and
// resolved by Resolve() to ~/.almanac/memory.
func Default() Config {
	return Config{
		Store: StoreConfig{
			ImmediateMax: 100,
			ShortTermMax: 500,
		},
		Ledger: LedgerConfig{
			Enabled: true,
		},
		Knowledge: KnowledgeConfig{
			StaleAfterDays: 30,
			FilePattern:    "*.md",
		},
		Schedule: ScheduleConfig{
			Sweep:      "0 30 3 * * *",
			Reflection: "0 45 23 * * *",
			Sync:       "@every 15m",
		},
		Log: LogConfig{
			Level: "info",
		},
		Categories: DefaultCategories(),
	}
}

// DefaultCategories is the stock category table.
func DefaultCategories() []Category {
	return []Category{
		{Name: "log", Dir: "", MaxAge: Days(30), ProtectIfReferenced: true},
		{Name: "reflections", Dir: "reflections", MaxAge: Days(30)},
		{Name: "actions", Dir: "actions", MaxAge: Days(14)},
		{Name: "decisions", Dir: "decisions", MaxAge: Never, Knowledge: true},
		{Name: "lessons", Dir: "lessons", MaxAge: Never, Knowledge: true, PriorityMaxAge: map[string]MaxAge{
			"high":   Never,
			"medium": Days(30),
			"low":    Days(30),
		}},
		{Name: "people", Dir: "people", MaxAge: Never, Knowledge: true},
		{Name: "projects", Dir: "projects", MaxAge: Never},
		{Name: "preferences", Dir: "preferences", MaxAge: Never},
	}
}

// DefaultRoot returns ~/.almanac/memory.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".almanac", "memory"), nil
}

// DefaultConfigPath returns ~/.almanac/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".almanac", "config.yaml"), nil
}

// Load builds a Config from defaults, the YAML file at path (optional; a
// missing file is not an error) and the environment, then resolves paths.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Resolve(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Resolve fills derived paths left empty and validates the category table.
func (c *Config) Resolve() error {
	if c.Root == "" {
		root, err := DefaultRoot()
		if err != nil {
			return err
		}
		c.Root = root
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = filepath.Join(c.Root, ".archive")
	}
	stateDir := filepath.Join(c.Root, ".almanac")
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(stateDir, "memory.json")
	}
	if c.Sync.StatePath == "" {
		c.Sync.StatePath = filepath.Join(stateDir, "sync_state.json")
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(stateDir, "ledger.db")
	}
	if c.Knowledge.StaleAfterDays <= 0 {
		c.Knowledge.StaleAfterDays = 30
	}
	if c.Knowledge.FilePattern == "" {
		c.Knowledge.FilePattern = "*.md"
	}
	if len(c.Categories) == 0 {
		c.Categories = DefaultCategories()
	}

	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("category with empty name")
		}
		if seen[cat.Name] {
			return fmt.Errorf("duplicate category %q", cat.Name)
		}
		if filepath.IsAbs(cat.Dir) || strings.Contains(cat.Dir, "..") {
			return fmt.Errorf("category %q: dir %q must be relative to root", cat.Name, cat.Dir)
		}
		seen[cat.Name] = true
	}
	return nil
}

// Location returns the time zone used for hour-of-day learning.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Category returns the table row for name.
func (c *Config) Category(name string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// CategoryDir returns the absolute directory of a category.
func (c *Config) CategoryDir(cat Category) string {
	return filepath.Join(c.Root, cat.Dir)
}

// KnowledgeDirs maps each knowledge category name to its absolute directory.
func (c *Config) KnowledgeDirs() map[string]string {
	dirs := make(map[string]string)
	for _, cat := range c.Categories {
		if cat.Knowledge {
			dirs[cat.Name] = c.CategoryDir(cat)
		}
	}
	return dirs
}

// KnowledgeCategories returns knowledge category names in table order.
func (c *Config) KnowledgeCategories() []string {
	var names []string
	for _, cat := range c.Categories {
		if cat.Knowledge {
			names = append(names, cat.Name)
		}
	}
	return names
}

// RecordDirs returns every directory holding records: the root plus each
// category dir, deduplicated, in table order. The archive is never included.
func (c *Config) RecordDirs() []string {
	seen := map[string]bool{}
	dirs := []string{}
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	add(filepath.Clean(c.Root))
	for _, cat := range c.Categories {
		add(filepath.Clean(c.CategoryDir(cat)))
	}
	return dirs
}
