// Package model はドメインモデルを定義する。
package model

import "time"

const (
	// DefaultUnitDuration はユニットのデフォルト期間（25分）。
	DefaultUnitDuration = 25 * time.Minute

	// MinUnitDuration はユニットの最小期間。これ未満の期間ではユニットを開始できない。
	MinUnitDuration = 120 * time.Second

	// GracePeriod は期限後に完了マークを受け付ける猶予期間。
	// システム全体で固定の値として扱う。
	GracePeriod = 5 * time.Minute

	// MaxTagLength はタグ1件の最大文字数（コードポイント数で数える）。
	MaxTagLength = 40

	// MaxTagSegments は1ユニットに指定できるタグの最大数。
	MaxTagSegments = 5
)

// UnitState はユニットの状態を表す。
// completed フラグと時間ウィンドウから導出される派生状態であり、永続化はしない。
type UnitState string

const (
	// UnitOngoing は期限前の進行中状態。キャンセル可能な唯一の状態。
	UnitOngoing UnitState = "ongoing"
	// UnitCompletable は期限後かつ猶予期間内の状態。完了マークを受け付ける。
	UnitCompletable UnitState = "completable"
	// UnitExpired は猶予期間も過ぎた状態。以後は一切変更できない履歴となる。
	UnitExpired UnitState = "expired"
	// UnitCompleted は完了済みの終端状態。
	UnitCompleted UnitState = "completed"
)

// Unit は1回の作業セッション（ポモドーロユニット）を表す。
// start_time、expiry_time、user_id は作成後に変更されない。
type Unit struct {
	ID          string
	UserID      string
	Completed   bool
	Description string
	StartTime   time.Time
	ExpiryTime  time.Time

	// Tags はユニットに付与されたタグ。集合として一括置換のみを許す。
	Tags []string
}

// StateAt は指定時刻におけるユニットの状態を返す。
//
//	ongoing:     completed = false かつ now < expiry_time
//	completable: completed = false かつ expiry_time <= now <= expiry_time + GracePeriod
//	expired:     completed = false かつ now > expiry_time + GracePeriod
//	completed:   completed = true（終端）
func (u *Unit) StateAt(now time.Time) UnitState {
	if u.Completed {
		return UnitCompleted
	}
	if now.Before(u.ExpiryTime) {
		return UnitOngoing
	}
	if !now.After(u.ExpiryTime.Add(GracePeriod)) {
		return UnitCompletable
	}
	return UnitExpired
}

// IsActiveAt は指定時刻にユニットが「アクティブ」（ongoing または completable）
// であるかを返す。新規ユニット開始のブロック判定と現在ユニット取得は
// この広いウィンドウを使用する。
func (u *Unit) IsActiveAt(now time.Time) bool {
	state := u.StateAt(now)
	return state == UnitOngoing || state == UnitCompletable
}

// IsCancellableAt は指定時刻にユニットをキャンセル（削除）できるかを返す。
// キャンセルは期限前の ongoing 状態に限る。猶予期間内であっても
// 期限を過ぎたユニットは削除できず、完了するか未完了履歴として残る。
func (u *Unit) IsCancellableAt(now time.Time) bool {
	return u.StateAt(now) == UnitOngoing
}

// RemainingAt は指定時刻から期限までの残り時間を返す。期限後は0を返す。
func (u *Unit) RemainingAt(now time.Time) time.Duration {
	if !now.Before(u.ExpiryTime) {
		return 0
	}
	return u.ExpiryTime.Sub(now)
}

// Tag はユニットに付与されたタグを表す。(unit_id, string) で一意。
// タグは個別に操作せず、ユニット単位で常に集合ごと置換する。
type Tag struct {
	UnitID string
	String string
}
