package migrate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rafaelmaranon/FixNow/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(filepath.Join(t.TempDir(), "snap", "directory.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()

	v, err := Migrate(ctx, conn)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if v < 1 {
		t.Fatalf("expected version >= 1, got %d", v)
	}
	again, err := Migrate(ctx, conn)
	if err != nil || again != v {
		t.Fatalf("second migrate: %d %v", again, err)
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM directory_contractors`).Scan(&n); err != nil {
		t.Fatalf("table missing: %v", err)
	}
}
