package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/assetmig/internal/asset"
	"github.com/persistorai/assetmig/internal/catalog"
	"github.com/persistorai/assetmig/internal/journal"
	"github.com/persistorai/assetmig/internal/migrate"
	"github.com/persistorai/assetmig/internal/service"
	"github.com/persistorai/assetmig/internal/upgrade"
)

var (
	errNoCatalog = errors.New("no catalog configured; set --catalog or ASSETMIG_CATALOG")
	errNoJournal = errors.New("no journal configured; set --journal or ASSETMIG_JOURNAL")
)

// engine is everything built from a catalog.
type engine struct {
	registry    *upgrade.Registry
	types       *asset.Types
	serializers *asset.Serializers
	migrator    *migrate.Migrator
}

func loadEngine(path string, log *logrus.Logger) (*engine, error) {
	if path == "" {
		return nil, errNoCatalog
	}

	cat, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}

	e := &engine{
		registry:    upgrade.NewRegistry(),
		types:       asset.NewTypes(),
		serializers: asset.NewSerializers(),
	}
	if err := cat.Apply(e.registry, e.types, e.serializers); err != nil {
		return nil, fmt.Errorf("applying catalog %s: %w", path, err)
	}
	e.migrator = migrate.New(e.registry, e.types, e.serializers, log)

	log.WithFields(logrus.Fields{
		"catalog": path,
		"types":   len(e.registry.Types()),
	}).Debug("catalog loaded")

	return e, nil
}

// startJournal opens the journal at path and runs a JournalWorker over it.
// The queue holds queueSize entries; sizing it to the batch means no entry of
// the run is dropped. The returned stop function drains pending entries and
// closes the journal. With an empty path the worker is nil and stop does
// nothing.
func startJournal(ctx context.Context, path string, queueSize int, log *logrus.Logger) (*service.JournalWorker, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}

	j, err := journal.Open(ctx, path, log)
	if err != nil {
		return nil, nil, err
	}

	jw := service.NewJournalWorker(j, log, queueSize)
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		jw.Run(runCtx)
		close(done)
	}()

	stop := func() {
		cancel()
		<-done
		if err := j.Close(); err != nil {
			log.WithError(err).Warn("closing journal failed")
		}
	}

	return jw, stop, nil
}
