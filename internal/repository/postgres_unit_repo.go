package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/pomon/internal/model"
)

// graceInterval は猶予期間をPostgreSQLのinterval値として表した文字列。
// ガード条件をSQL内で評価するため、model.GracePeriodと常に一致させる。
var graceInterval = fmt.Sprintf("%d seconds", int(model.GracePeriod.Seconds()))

// PostgresUnitRepo はPostgreSQLを使用したユニットリポジトリ。
// 状態遷移のガード条件はすべて単一のSQL文に埋め込まれている。
type PostgresUnitRepo struct {
	db *sql.DB
}

// NewPostgresUnitRepo はPostgresUnitRepoを生成する。
func NewPostgresUnitRepo(db *sql.DB) *PostgresUnitRepo {
	return &PostgresUnitRepo{db: db}
}

// CreateIfNoActive はアクティブなユニットが存在しない場合に限りユニットを挿入する。
//
// チェックと挿入は同一トランザクション内で行い、さらにユーザーIDに対する
// アドバイザリロックで同一ユーザーの同時開始を直列化する。これにより
// 「READ COMMITTED下で2つのトランザクションが互いの未コミット行を見えず
// 両方成功する」競合を閉じる（single-active-unit不変条件）。
func (r *PostgresUnitRepo) CreateIfNoActive(ctx context.Context, unit *model.Unit) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// ユーザー単位の排他。トランザクション終了時に自動解放される。
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		unit.UserID,
	); err != nil {
		return false, fmt.Errorf("failed to acquire per-user lock: %w", err)
	}

	description := sql.NullString{String: unit.Description, Valid: unit.Description != ""}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO units (id, user_id, completed, description, start_time, expiry_time)
		 SELECT $1, $2, FALSE, $3, $4, $5
		 WHERE NOT EXISTS (
		     SELECT 1 FROM units
		     WHERE user_id = $2
		       AND completed = FALSE
		       AND now() <= expiry_time + $6::interval
		 )`,
		unit.ID, unit.UserID, description, unit.StartTime, unit.ExpiryTime, graceInterval,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert unit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// アクティブなユニットが既に存在する
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// FindByID は指定ユーザーが所有するユニットを取得する。見つからない場合はnilを返す。
func (r *PostgresUnitRepo) FindByID(ctx context.Context, unitID, userID string) (*model.Unit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, completed, description, start_time, expiry_time
		 FROM units
		 WHERE id = $1 AND user_id = $2`,
		unitID, userID,
	)

	unit, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find unit: %w", err)
	}

	return unit, nil
}

// FindActiveByUserID はユーザーのアクティブなユニットを取得する。
// アクティブの定義は「未完了かつ猶予期間をまだ過ぎていない」で、
// 期限前（ongoing）と猶予期間内（completable）の両方を含む。
// キャンセル可否の判定（期限前のみ）より広いウィンドウである点に注意。
func (r *PostgresUnitRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.Unit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, completed, description, start_time, expiry_time
		 FROM units
		 WHERE user_id = $1
		   AND completed = FALSE
		   AND now() <= expiry_time + $2::interval
		 ORDER BY start_time DESC
		 LIMIT 1`,
		userID, graceInterval,
	)

	unit, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active unit: %w", err)
	}

	return unit, nil
}

// MarkComplete は完了マークのガード条件をWHERE句に持つ単一UPDATEを実行し、
// 影響行数を返す。事前読み取りは行わない。同一ユニットへの同時完了マークは
// ちょうど1回だけ影響行数1を観測する。
func (r *PostgresUnitRepo) MarkComplete(ctx context.Context, unitID, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE units SET completed = TRUE
		 WHERE id = $1
		   AND user_id = $2
		   AND completed = FALSE
		   AND expiry_time <= now()
		   AND now() <= expiry_time + $3::interval`,
		unitID, userID, graceInterval,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark unit complete: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// DeleteOngoingByUserID は期限前のユニットのみを削除し、影響行数を返す。
// WHERE句の now() < expiry_time により、時計と競合するキャンセルでも
// 期限を過ぎた直後のユニットは削除されない。タグはCASCADE削除される。
func (r *PostgresUnitRepo) DeleteOngoingByUserID(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM units
		 WHERE user_id = $1
		   AND completed = FALSE
		   AND now() < expiry_time`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ongoing unit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// ListByStartTimeRange は start_time が範囲内のユニットを start_time 降順で返す。
func (r *PostgresUnitRepo) ListByStartTimeRange(ctx context.Context, userID string, from, to time.Time) ([]*model.Unit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, completed, description, start_time, expiry_time
		 FROM units
		 WHERE user_id = $1
		   AND start_time BETWEEN $2 AND $3
		 ORDER BY start_time DESC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer rows.Close()

	var units []*model.Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate units: %w", err)
	}

	return units, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUnit は1行をmodel.Unitに読み取る。
func scanUnit(row rowScanner) (*model.Unit, error) {
	unit := &model.Unit{}
	var description sql.NullString

	err := row.Scan(
		&unit.ID, &unit.UserID, &unit.Completed,
		&description, &unit.StartTime, &unit.ExpiryTime,
	)
	if err != nil {
		return nil, err
	}

	unit.Description = description.String
	return unit, nil
}

// compile-time interface check
var _ UnitRepository = (*PostgresUnitRepo)(nil)
