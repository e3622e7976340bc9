package repository

import (
	"strings"
	"testing"
	"time"

	"QullaScan/internal/domain/models"
)

func TestBuildInsertSkipsIncompleteRows(t *testing.T) {
	at := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	snaps := []models.Snapshot{
		{ScanID: "s1", ScannedAt: at, Symbol: "NVDA", RSRating: 91, IsQullaSetup: true},
		{ScanID: "s1", ScannedAt: at},
		{ScanID: "", Symbol: "AMD"},
		{ScanID: "s1", ScannedAt: at, Symbol: "AMD", IsEP: true},
	}
	q, args := buildInsert("scan_snapshots", snaps)
	if strings.Count(q, "(?,") != 2 {
		t.Fatalf("want 2 value rows, query %q", q)
	}
	if len(args) != 30 {
		t.Fatalf("args: want 30 got %d", len(args))
	}
	if args[5] != uint8(1) || args[7] != uint8(91) {
		t.Fatalf("bool/rs encoding: %v %v", args[5], args[7])
	}
	if q2, _ := buildInsert("t", nil); q2 != "" {
		t.Fatalf("empty batch should produce no query")
	}
}

func TestSnapshotsFrom(t *testing.T) {
	at := time.Now()
	recs := []*models.SymbolRecord{{Symbol: "SHOP", Price: 80, RSRating: 75}, nil}
	got := SnapshotsFrom("scan-1", at, recs, map[string]string{"SHOP": "abc"})
	if len(got) != 1 || got[0].DataHash != "abc" || got[0].ScanID != "scan-1" || got[0].RSRating != 75 {
		t.Fatalf("snapshots: %+v", got)
	}
}

func TestSchemaDefaultsTable(t *testing.T) {
	stmts := SchemaStatements("")
	if len(stmts) != 1 || !strings.Contains(stmts[0], DefaultSnapshotTable) {
		t.Fatalf("schema: %v", stmts)
	}
}
