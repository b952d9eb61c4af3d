// Package main provides the chatcentral CLI: a cobra-based front end
// over the same services the extension-facing DispatchSurface wraps.
package main

import (
	"github.com/flowKKo/chat-central-sub002/internal/batch"
	"github.com/flowKKo/chat-central-sub002/internal/config"
	"github.com/flowKKo/chat-central-sub002/internal/dispatch"
	"github.com/flowKKo/chat-central-sub002/internal/export"
	"github.com/flowKKo/chat-central-sub002/internal/importer"
	"github.com/flowKKo/chat-central-sub002/internal/merge"
	"github.com/flowKKo/chat-central-sub002/internal/search"
	"github.com/flowKKo/chat-central-sub002/internal/store"
	"github.com/flowKKo/chat-central-sub002/internal/tag"
)

// Deps bundles the services every CLI command runs against. Its fields
// are exported so commands can reach into them directly, and so tests
// can substitute a store.Store backed by ":memory:" without touching
// the config/env layer.
type Deps struct {
	Config config.Config
	Store  store.Store

	Merge  *merge.Engine
	Search *search.Engine
	Tags   *tag.Service
	Export *export.Codec
	Import *importer.Engine
	Batch  *batch.Orchestrator
	Bus    *dispatch.Bus

	Surface *dispatch.Surface
}

// DefaultDeps wires production dependencies from configPath (the empty
// string uses only defaults + environment), opening the configured
// SQLite store. fetcher is nil by default; batch commands that actually
// dispatch fetches require one supplied by the embedding process (the
// browser extension host), which the standalone CLI does not provide --
// "batch run" without one fails with a NoContext error, matching the
// documented error taxonomy rather than panicking.
func DefaultDeps(configPath string, fetcher batch.Fetcher) (*Deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteStoreWithDSN(cfg.StorePath)
	if err != nil {
		return nil, err
	}

	mergeEngine := merge.New(nil)
	searchEngine := search.New(st)
	tagService := tag.New(st)
	codec := export.New(nil)
	importEngine := importer.New(st, mergeEngine)
	orchestrator := batch.New(st, fetcher, codec, cfg)
	bus := dispatch.NewBus()

	surface := &dispatch.Surface{
		Store:  st,
		Merge:  mergeEngine,
		Search: searchEngine,
		Tags:   tagService,
		Export: codec,
		Import: importEngine,
		Batch:  orchestrator,
		Bus:    bus,
	}

	return &Deps{
		Config:  cfg,
		Store:   st,
		Merge:   mergeEngine,
		Search:  searchEngine,
		Tags:    tagService,
		Export:  codec,
		Import:  importEngine,
		Batch:   orchestrator,
		Bus:     bus,
		Surface: surface,
	}, nil
}
