// Command apedb is a thin demonstration binary: it creates a database,
// writes its DBHEAD, opens one List against a simple schema, and adds a
// sample entry. It exists to exercise the library end to end, not as a
// CLI surface in its own right.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/apedb/apedb/internal/schema"
	"github.com/apedb/apedb/internal/store"
	"github.com/apedb/apedb/pkg/apedb"
	"github.com/apedb/apedb/pkg/apetypes"
	"github.com/apedb/apedb/pkg/options"
	"github.com/apedb/apedb/pkg/uuidpool"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	opts := options.NewDefaultOptions()
	path := opts.FileName

	cf, err := store.Create(path, os.FileMode(opts.FilePerm), log)
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	defer cf.Close()

	if err := store.WriteHeader(cf, store.NewHeader("Ape Database!", "root")); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	structure := schema.New("doc", []schema.Requirement{
		{FieldID: "id", ExpectedKind: apetypes.KindString},
	})

	list := apedb.New(&apedb.Config{
		Structure: structure,
		File:      cf,
		Laze:      opts.Laze,
		Logger:    log,
	})

	entry := apedb.NewEntry(uuidpool.New(), []apedb.Field{
		apedb.NewField("id", apetypes.NewString("Hello")),
	})
	if err := list.AddEntry(entry); err != nil {
		return fmt.Errorf("add entry: %w", err)
	}

	log.Infow("entry added", "entryCount", list.EntryCount(), "head", list.Head())
	return nil
}
