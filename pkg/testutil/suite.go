package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/farmaflow/farmaflow-backend/pkg/database"
	"github.com/farmaflow/farmaflow-backend/pkg/logger"
)

var (
	// one container shared by every integration test in the process
	globalContainer *PostgresContainer
	globalDB        *database.DB
	containerOnce   sync.Once
	containerErr    error
)

// Postgres returns the shared database, starting the container on first use.
// It skips the test under -short.
func Postgres(t *testing.T) *database.DB {
	t.Helper()
	SkipIfShort(t)

	containerOnce.Do(func() {
		ctx := context.Background()
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		raw, err := globalContainer.Connect(ctx)
		if err != nil {
			containerErr = err
			return
		}
		globalDB = database.Wrap(raw, logger.Nop())
	})

	if containerErr != nil {
		t.Fatalf("postgres container unavailable: %v", containerErr)
	}
	return globalDB
}

// ResetTables truncates the given tables after the test
func ResetTables(t *testing.T, db *database.DB, tables ...string) {
	t.Helper()
	t.Cleanup(func() {
		for _, table := range tables {
			if _, err := db.Exec("TRUNCATE TABLE " + table + " CASCADE"); err != nil {
				t.Logf("warning: failed to truncate %s: %v", table, err)
			}
		}
	})
}

// TerminateContainer stops the shared container. Call it from TestMain after m.Run.
func TerminateContainer(ctx context.Context) {
	if globalDB != nil {
		globalDB.Close()
	}
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// SkipIfShort skips the test if running with -short flag
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}
