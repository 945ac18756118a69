package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/hitoshi/pomon/internal/model"
)

// PostgresUnitRepoはUnitRepositoryインターフェースを満たすことを検証
func TestPostgresUnitRepo_ImplementsInterface(t *testing.T) {
	var _ UnitRepository = (*PostgresUnitRepo)(nil)
}

// PostgresTagRepoはTagRepositoryインターフェースを満たすことを検証
func TestPostgresTagRepo_ImplementsInterface(t *testing.T) {
	var _ TagRepository = (*PostgresTagRepo)(nil)
}

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresIdentityRepoはIdentityRepositoryインターフェースを満たすことを検証
func TestPostgresIdentityRepo_ImplementsInterface(t *testing.T) {
	var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
}

// PostgresSessionRepoはSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

// NewPostgresUnitRepoが正しく初期化されることを検証
func TestNewPostgresUnitRepo_Initializes(t *testing.T) {
	repo := NewPostgresUnitRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// graceIntervalがmodel.GracePeriodと一致したinterval文字列であることを検証。
// SQL内のガード条件とモデルの状態マシンがずれると、アプリとDBで
// completableの判定が食い違う。
func TestGraceInterval_MatchesModel(t *testing.T) {
	want := fmt.Sprintf("%d seconds", int(model.GracePeriod.Seconds()))
	if graceInterval != want {
		t.Errorf("graceInterval = %q, want %q", graceInterval, want)
	}
	if model.GracePeriod != 5*time.Minute {
		t.Errorf("GracePeriod = %v, want %v", model.GracePeriod, 5*time.Minute)
	}
}

// scanUnitがNULLのdescriptionを空文字列として読み取ることの期待動作
// （DB接続なしでコンセプトを検証）
func TestScanUnit_NullDescription_Concept(t *testing.T) {
	unit := &model.Unit{Description: ""}
	if unit.Description != "" {
		t.Error("zero-value description should be empty string")
	}
}
