package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"QullaScan/internal/domain/models"
	domrepo "QullaScan/internal/domain/repository"
	pkgch "QullaScan/pkg/clickhouse"
	applogger "QullaScan/pkg/logger"
)

const DefaultSnapshotTable = "scan_snapshots"

// insertChunk bounds the rows of one multi-row INSERT.
const insertChunk = 2000

const snapshotColumns = "scan_id, scanned_at, symbol, price, setup_score, is_qulla, is_ep, rs_rating, momentum_1m, momentum_3m, momentum_6m, adr_percent, sector, industry, data_hash"

// CHSnapshotStore archives scan results in ClickHouse.
type CHSnapshotStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHSnapshotStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHSnapshotStore {
	return newCHSnapshotStore(ch.DB(), table, l)
}

func newCHSnapshotStore(db *sql.DB, table string, l *applogger.Logger) *CHSnapshotStore {
	if table == "" {
		table = DefaultSnapshotTable
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CHSnapshotStore{db: db, table: table, l: l.With("snapshot-store")}
}

// SchemaStatements returns the DDL for the snapshot table.
func SchemaStatements(table string) []string {
	if table == "" {
		table = DefaultSnapshotTable
	}
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            scan_id     String,
            scanned_at  DateTime64(3, 'UTC'),
            symbol      LowCardinality(String),
            price       Float64,
            setup_score Float64,
            is_qulla    UInt8,
            is_ep       UInt8,
            rs_rating   UInt8,
            momentum_1m Float64,
            momentum_3m Float64,
            momentum_6m Float64,
            adr_percent Float64,
            sector      LowCardinality(String),
            industry    LowCardinality(String),
            data_hash   String
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(scanned_at)
        ORDER BY (symbol, scanned_at)
        TTL toDateTime(scanned_at) + INTERVAL 180 DAY
    `, table)}
}

func (s *CHSnapshotStore) Init(ctx context.Context) error {
	for _, stmt := range SchemaStatements(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

// StoreBatch inserts snaps using multi-row VALUES to reduce round-trips.
func (s *CHSnapshotStore) StoreBatch(ctx context.Context, snaps []models.Snapshot) error {
	start := time.Now()
	stored := 0
	for lo := 0; lo < len(snaps); lo += insertChunk {
		hi := lo + insertChunk
		if hi > len(snaps) {
			hi = len(snaps)
		}
		q, args := buildInsert(s.table, snaps[lo:hi])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse snapshot insert error",
				applogger.String("table", s.table),
				applogger.Int("rows", hi-lo),
				applogger.Error(err),
			)
			return fmt.Errorf("store snapshots: %w", err)
		}
		stored += hi - lo
	}
	if stored > 0 {
		s.l.Debug("clickhouse snapshot insert ok",
			applogger.String("table", s.table),
			applogger.Int("rows", stored),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func buildInsert(table string, snaps []models.Snapshot) (string, []interface{}) {
	values := make([]string, 0, len(snaps))
	args := make([]interface{}, 0, len(snaps)*15)
	for _, sn := range snaps {
		if sn.Symbol == "" || sn.ScanID == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			sn.ScanID,
			sn.ScannedAt.UTC(),
			sn.Symbol,
			sn.Price,
			sn.SetupScore,
			boolToUInt8(sn.IsQullaSetup),
			boolToUInt8(sn.IsEP),
			uint8(sn.RSRating),
			sn.Momentum1M,
			sn.Momentum3M,
			sn.Momentum6M,
			sn.ADRPercent,
			sn.Sector,
			sn.Industry,
			sn.DataHash,
		)
	}
	if len(values) == 0 {
		return "", nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, snapshotColumns, strings.Join(values, ",")), args
}

// History returns the newest snapshots of symbol first.
func (s *CHSnapshotStore) History(ctx context.Context, symbol string, limit int) ([]models.Snapshot, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE symbol = ? ORDER BY scanned_at DESC LIMIT ?", snapshotColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		s.l.Error("clickhouse snapshot history query error",
			applogger.String("symbol", symbol),
			applogger.Int("limit", limit),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("snapshot history: %w", err)
	}
	defer rows.Close()

	out := make([]models.Snapshot, 0, limit)
	for rows.Next() {
		var (
			sn            models.Snapshot
			qulla, ep, rs uint8
		)
		if err := rows.Scan(&sn.ScanID, &sn.ScannedAt, &sn.Symbol, &sn.Price, &sn.SetupScore,
			&qulla, &ep, &rs, &sn.Momentum1M, &sn.Momentum3M, &sn.Momentum6M,
			&sn.ADRPercent, &sn.Sector, &sn.Industry, &sn.DataHash); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		sn.IsQullaSetup, sn.IsEP, sn.RSRating = qulla == 1, ep == 1, int(rs)
		out = append(out, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHSnapshotStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHSnapshotStore) Close() error {
	return nil // pool owned by pkg/clickhouse
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// SnapshotsFrom converts scored records into archive rows.
func SnapshotsFrom(scanID string, at time.Time, records []*models.SymbolRecord, hashes map[string]string) []models.Snapshot {
	out := make([]models.Snapshot, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		out = append(out, models.Snapshot{
			ScanID:       scanID,
			ScannedAt:    at,
			Symbol:       r.Symbol,
			Price:        r.Price,
			SetupScore:   r.SetupScore,
			IsQullaSetup: r.IsQullaSetup,
			IsEP:         r.IsEP,
			RSRating:     r.RSRating,
			Momentum1M:   r.Momentum1M,
			Momentum3M:   r.Momentum3M,
			Momentum6M:   r.Momentum6M,
			ADRPercent:   r.ADRPercent,
			Sector:       r.Sector,
			Industry:     r.Industry,
			DataHash:     hashes[r.Symbol],
		})
	}
	return out
}

var _ domrepo.SnapshotStore = (*CHSnapshotStore)(nil)
