package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresTagRepo はPostgreSQLを使用したタグリポジトリ。
type PostgresTagRepo struct {
	db *sql.DB
}

// NewPostgresTagRepo はPostgresTagRepoを生成する。
func NewPostgresTagRepo(db *sql.DB) *PostgresTagRepo {
	return &PostgresTagRepo{db: db}
}

// ReplaceForUnit はユニットのタグ集合を一括置換する。
// 削除と挿入は同一トランザクションで実行され、部分適用は起こらない。
// 挿入が1件でも失敗した場合（重複等）は既存のタグ集合がそのまま残る。
func (r *PostgresTagRepo) ReplaceForUnit(ctx context.Context, unitID string, tags []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tags WHERE unit_id = $1`,
		unitID,
	); err != nil {
		return fmt.Errorf("failed to delete existing tags: %w", err)
	}

	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tags (unit_id, string) VALUES ($1, $2)`,
			unitID, tag,
		); err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListByUnitID はユニットのタグ一覧を返す。
func (r *PostgresTagRepo) ListByUnitID(ctx context.Context, unitID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT string FROM tags WHERE unit_id = $1 ORDER BY string`,
		unitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}

	return tags, nil
}

// ListByUnitIDs は複数ユニットのタグをユニットIDごとにまとめて返す。
func (r *PostgresTagRepo) ListByUnitIDs(ctx context.Context, unitIDs []string) (map[string][]string, error) {
	result := make(map[string][]string)
	if len(unitIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT unit_id, string FROM tags WHERE unit_id = ANY($1) ORDER BY unit_id, string`,
		pq.Array(unitIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags by unit IDs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var unitID, tag string
		if err := rows.Scan(&unitID, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		result[unitID] = append(result[unitID], tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}

	return result, nil
}

// compile-time interface check
var _ TagRepository = (*PostgresTagRepo)(nil)
