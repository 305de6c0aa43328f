package cli

import (
	"fmt"

	"github.com/lazypower/almanac/internal/eventstore"
	"github.com/lazypower/almanac/internal/knowledge"
	"github.com/lazypower/almanac/internal/ledger"
	"github.com/lazypower/almanac/internal/retention"
)

// openStore opens the event store described by cfg.
func openStore() (*eventstore.Store, error) {
	if cfg.Store.Path == "" {
		return nil, fmt.Errorf("open event store: no store path configured")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	s, err := eventstore.Open(cfg.Store.Path, eventstore.Options{
		ImmediateMax: cfg.Store.ImmediateMax,
		ShortTermMax: cfg.Store.ShortTermMax,
		Location:     loc,
		Logger:       log.Named("store"),
	})
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	return s, nil
}

// openLedger opens the audit ledger, or returns nil when it is disabled.
func openLedger() (*ledger.DB, error) {
	if !cfg.Ledger.Enabled {
		return nil, nil
	}
	db, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return db, nil
}

func newRetention(db *ledger.DB) (*retention.Engine, error) {
	e, err := retention.New(cfg)
	if err != nil {
		return nil, err
	}
	e.Log = log.Named("retention")
	if db != nil {
		e.Ledger = db
	}
	return e, nil
}

func newValidator(db *ledger.DB) (*knowledge.Validator, error) {
	v, err := knowledge.New(cfg)
	if err != nil {
		return nil, err
	}
	v.Log = log.Named("knowledge")
	if db != nil {
		v.Ledger = db
	}
	return v, nil
}

func closeLedger(db *ledger.DB) {
	if db != nil {
		db.Close()
	}
}
