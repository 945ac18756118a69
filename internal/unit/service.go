// Package unit はユニット（作業セッション）ライフサイクルのドメインロジックを提供する。
package unit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/pomon/internal/model"
	"github.com/hitoshi/pomon/internal/repository"
)

// Sanitizer は説明文のサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(s string) string
}

// Recorder はユニットライフサイクルイベントのメトリクス記録インターフェース。
type Recorder interface {
	RecordUnitStarted()
	RecordUnitCompleted()
	RecordUnitCancelled()
	RecordStartConflict()
}

// Service はユニットライフサイクルのサービス層。
// 開始・完了・キャンセル・取得の各操作を提供する。
// 状態遷移のガード条件はリポジトリの単一SQL文に委ねており、
// サービス層では読み取り結果に基づく判定を行わない。
type Service struct {
	unitRepo  repository.UnitRepository
	tagRepo   repository.TagRepository
	sanitizer Sanitizer
	recorder  Recorder

	// nowFn はテストで時刻を固定するために差し替え可能。
	nowFn func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// sanitizerとrecorderはnilを許容する。
func NewService(
	unitRepo repository.UnitRepository,
	tagRepo repository.TagRepository,
	sanitizer Sanitizer,
	recorder Recorder,
) *Service {
	return &Service{
		unitRepo:  unitRepo,
		tagRepo:   tagRepo,
		sanitizer: sanitizer,
		recorder:  recorder,
		nowFn:     time.Now,
	}
}

// Start は新しいユニットを開始する。
// secondsが0の場合はデフォルト期間（25分）を適用する。
// アクティブなユニット（進行中または猶予期間内）が既に存在する場合は
// HAS_ONGOING_UNITエラーを返す。この判定はリポジトリ内の条件付き挿入で
// 原子的に行われ、同時リクエストでも高々1件しか開始できない。
func (s *Service) Start(ctx context.Context, userID string, seconds int, description string) (*model.Unit, error) {
	if seconds == 0 {
		seconds = int(model.DefaultUnitDuration.Seconds())
	}
	if seconds < int(model.MinUnitDuration.Seconds()) {
		return nil, model.NewValidationError(
			fmt.Sprintf("ユニットの期間は%d秒以上である必要があります。", int(model.MinUnitDuration.Seconds())))
	}

	if s.sanitizer != nil {
		description = s.sanitizer.Sanitize(description)
	}

	now := s.nowFn()
	unit := &model.Unit{
		ID:          uuid.New().String(),
		UserID:      userID,
		Completed:   false,
		Description: description,
		StartTime:   now,
		ExpiryTime:  now.Add(time.Duration(seconds) * time.Second),
	}

	inserted, err := s.unitRepo.CreateIfNoActive(ctx, unit)
	if err != nil {
		return nil, fmt.Errorf("ユニットの作成に失敗しました: %w", err)
	}
	if !inserted {
		if s.recorder != nil {
			s.recorder.RecordStartConflict()
		}
		return nil, model.NewHasOngoingUnitError()
	}

	if s.recorder != nil {
		s.recorder.RecordUnitStarted()
	}
	return unit, nil
}

// Complete は指定ユニットに完了マークを付ける。
// ガード条件（本人所有・未完了・期限後・猶予期間内）を満たさない場合は
// falseを返す。どの条件で拒否されたかは区別しない。
func (s *Service) Complete(ctx context.Context, userID, unitID string) (bool, error) {
	rows, err := s.unitRepo.MarkComplete(ctx, unitID, userID)
	if err != nil {
		return false, fmt.Errorf("ユニットの完了マークに失敗しました: %w", err)
	}
	switch {
	case rows == 0:
		return false, nil
	case rows == 1:
		if s.recorder != nil {
			s.recorder.RecordUnitCompleted()
		}
		return true, nil
	default:
		// ガード付きUPDATEが複数行に影響することはあり得ない
		slog.Error("完了マークが複数行に影響しました", "user_id", userID, "unit_id", unitID, "rows", rows)
		return false, fmt.Errorf("データ整合性エラー: 完了マークが%d行に影響しました", rows)
	}
}

// Cancel はユーザーの進行中（期限前）ユニットを削除する。
// 進行中ユニットがない場合はfalseを返す。期限後のユニットは
// 猶予期間内であっても削除しない。
func (s *Service) Cancel(ctx context.Context, userID string) (bool, error) {
	rows, err := s.unitRepo.DeleteOngoingByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("ユニットのキャンセルに失敗しました: %w", err)
	}
	switch {
	case rows == 0:
		return false, nil
	case rows == 1:
		if s.recorder != nil {
			s.recorder.RecordUnitCancelled()
		}
		return true, nil
	default:
		// 進行中ユニットは高々1件の不変条件が破れている
		slog.Error("キャンセルが複数行に影響しました", "user_id", userID, "rows", rows)
		return false, fmt.Errorf("データ整合性エラー: キャンセルが%d行に影響しました", rows)
	}
}

// Current はユーザーのアクティブな（進行中または猶予期間内の）ユニットを
// タグ付きで返す。存在しない場合はNO_ONGOING_UNITエラーを返す。
func (s *Service) Current(ctx context.Context, userID string) (*model.Unit, error) {
	unit, err := s.unitRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("進行中ユニットの取得に失敗しました: %w", err)
	}
	if unit == nil {
		return nil, model.NewNoOngoingUnitError()
	}

	tags, err := s.tagRepo.ListByUnitID(ctx, unit.ID)
	if err != nil {
		return nil, fmt.Errorf("タグの取得に失敗しました: %w", err)
	}
	unit.Tags = tags

	return unit, nil
}

// HasOngoing はユーザーにアクティブなユニットが存在するかを返す。
func (s *Service) HasOngoing(ctx context.Context, userID string) (bool, error) {
	unit, err := s.unitRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("進行中ユニットの確認に失敗しました: %w", err)
	}
	return unit != nil, nil
}

// Get は指定ユニットをタグ付きで返す。
// 見つからない場合や他ユーザー所有の場合はUNIT_NOT_FOUNDエラーを返す。
func (s *Service) Get(ctx context.Context, userID, unitID string) (*model.Unit, error) {
	unit, err := s.unitRepo.FindByID(ctx, unitID, userID)
	if err != nil {
		return nil, fmt.Errorf("ユニットの取得に失敗しました: %w", err)
	}
	if unit == nil {
		return nil, model.NewUnitNotFoundError(unitID)
	}

	tags, err := s.tagRepo.ListByUnitID(ctx, unit.ID)
	if err != nil {
		return nil, fmt.Errorf("タグの取得に失敗しました: %w", err)
	}
	unit.Tags = tags

	return unit, nil
}

// ListRange は start_time が [from, to]（両端含む）に入るユニットを
// タグ付きで新しい順に返す。fromとtoが逆順で渡された場合は入れ替えて扱う。
func (s *Service) ListRange(ctx context.Context, userID string, from, to time.Time) ([]*model.Unit, error) {
	if from.After(to) {
		from, to = to, from
	}

	units, err := s.unitRepo.ListByStartTimeRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ユニット一覧の取得に失敗しました: %w", err)
	}
	if len(units) == 0 {
		return units, nil
	}

	unitIDs := make([]string, len(units))
	for i, u := range units {
		unitIDs[i] = u.ID
	}

	tagsByUnit, err := s.tagRepo.ListByUnitIDs(ctx, unitIDs)
	if err != nil {
		return nil, fmt.Errorf("タグの取得に失敗しました: %w", err)
	}
	for _, u := range units {
		u.Tags = tagsByUnit[u.ID]
	}

	return units, nil
}
