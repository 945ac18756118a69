// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/pomon/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// identityが作成できない場合はユーザーもコミットしない。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、units、tagsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// UnitRepository はユニットデータの永続化インターフェース。
// 状態マシンのガード条件は各操作のSQL文そのものに埋め込まれており、
// read-then-write の2段階には決して分割しない。同時リクエスト下での
// 正しさはこの単一文の原子性に依存している。
type UnitRepository interface {
	// CreateIfNoActive はアクティブ（進行中または猶予期間内）のユニットが
	// 存在しない場合に限り、新しいユニットを1トランザクションで挿入する。
	// ユーザー単位で直列化されるため、同時開始の競合でも高々1件しか成功しない。
	// 挿入できた場合はtrueを返す。
	CreateIfNoActive(ctx context.Context, unit *model.Unit) (bool, error)

	// FindByID は指定ユーザーが所有するユニットを取得する。
	// 見つからない場合や他ユーザーの所有の場合はnilを返す。
	FindByID(ctx context.Context, unitID, userID string) (*model.Unit, error)

	// FindActiveByUserID はユーザーのアクティブなユニット
	// （completed = false かつ猶予期間をまだ過ぎていない）を取得する。
	// 見つからない場合はnilを返す。
	FindActiveByUserID(ctx context.Context, userID string) (*model.Unit, error)

	// MarkComplete は猶予期間内の未完了ユニットに完了マークを付ける。
	// ガード条件（未完了・期限後・猶予期間内・本人所有）は単一UPDATEの
	// WHERE句として実行され、影響行数を返す。
	MarkComplete(ctx context.Context, unitID, userID string) (int64, error)

	// DeleteOngoingByUserID はユーザーの期限前（ongoing）ユニットを削除し、
	// 影響行数を返す。猶予期間内・期限切れのユニットは削除対象にならない。
	DeleteOngoingByUserID(ctx context.Context, userID string) (int64, error)

	// ListByStartTimeRange は start_time が [from, to]（両端含む）に入るユニットを
	// start_time 降順で返す。expiry_time は範囲判定に関与しない。
	ListByStartTimeRange(ctx context.Context, userID string, from, to time.Time) ([]*model.Unit, error)
}

// TagRepository はタグデータの永続化インターフェース。
// タグは個別に更新せず、ユニット単位の集合として常に一括置換する。
type TagRepository interface {
	// ReplaceForUnit はユニットの既存タグを全削除し、新しいタグ集合を
	// 同一トランザクションで挿入する。途中で失敗した場合は既存タグが残る。
	// tagsが空の場合は削除のみを行う（全タグクリア）。
	ReplaceForUnit(ctx context.Context, unitID string, tags []string) error

	// ListByUnitID はユニットのタグ一覧を返す。
	ListByUnitID(ctx context.Context, unitID string) ([]string, error)

	// ListByUnitIDs は複数ユニットのタグをユニットIDごとにまとめて返す。
	// 一覧表示でのN+1クエリ回避用。
	ListByUnitIDs(ctx context.Context, unitIDs []string) (map[string][]string, error)
}
