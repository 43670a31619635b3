package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cropscan/apiserver/types"
)

// ScanRepository handles persistence for scan history in postgres.
type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

func (r *ScanRepository) ListRecent(ctx context.Context, limit int) ([]types.ScanHistory, error) {
	const query = `
		SELECT id, file_name, disease, confidence, severity, treatment, created_at
		FROM scan_history
		ORDER BY created_at DESC, id DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	scans := make([]types.ScanHistory, 0, limit)
	for rows.Next() {
		var scan types.ScanHistory
		if err := rows.Scan(
			&scan.ID,
			&scan.FileName,
			&scan.Disease,
			&scan.Confidence,
			&scan.Severity,
			&scan.Treatment,
			&scan.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return scans, nil
}

func (r *ScanRepository) Create(ctx context.Context, scan types.ScanHistory) (types.ScanHistory, error) {
	const query = `
		INSERT INTO scan_history (file_name, disease, confidence, severity, treatment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		scan.FileName,
		scan.Disease,
		scan.Confidence,
		scan.Severity,
		scan.Treatment,
		scan.CreatedAt,
	).Scan(&scan.ID); err != nil {
		return types.ScanHistory{}, fmt.Errorf("create scan: %w", err)
	}
	return scan, nil
}

func (r *ScanRepository) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM scan_history`
	var total int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scans: %w", err)
	}
	return total, nil
}

func (r *ScanRepository) DeleteAll(ctx context.Context) error {
	const query = `DELETE FROM scan_history`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete scans: %w", err)
	}
	return nil
}
