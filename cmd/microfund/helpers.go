package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/civitas-coop/microfund/internal/engine"
	"github.com/civitas-coop/microfund/internal/storage"

	"github.com/spf13/viper"
)

// openStorage opens the configured database and returns the storage plus its
// close function.
func openStorage() (*storage.SQLiteStorage, func(), error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "microfund", "microfund.db")
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

// openEngine opens storage and wraps it in the campaign engine.
func openEngine() (*engine.Engine, func(), error) {
	store, cleanup, err := openStorage()
	if err != nil {
		return nil, nil, err
	}
	return engine.New(store), cleanup, nil
}

// parseID parses a positive int64 command line argument.
func parseID(arg, name string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, arg)
	}
	return id, nil
}

// parseIDs parses a list of positive int64 command line arguments.
func parseIDs(args []string, name string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
