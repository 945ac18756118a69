package tag

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/pomon/internal/model"
)

// --- モック ---

type mockUnitRepo struct {
	findByIDFn func(ctx context.Context, unitID, userID string) (*model.Unit, error)
}

func (m *mockUnitRepo) CreateIfNoActive(ctx context.Context, unit *model.Unit) (bool, error) {
	return false, nil
}
func (m *mockUnitRepo) FindByID(ctx context.Context, unitID, userID string) (*model.Unit, error) {
	return m.findByIDFn(ctx, unitID, userID)
}
func (m *mockUnitRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.Unit, error) {
	return nil, nil
}
func (m *mockUnitRepo) MarkComplete(ctx context.Context, unitID, userID string) (int64, error) {
	return 0, nil
}
func (m *mockUnitRepo) DeleteOngoingByUserID(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}
func (m *mockUnitRepo) ListByStartTimeRange(ctx context.Context, userID string, from, to time.Time) ([]*model.Unit, error) {
	return nil, nil
}

type mockTagRepo struct {
	replaceForUnitFn func(ctx context.Context, unitID string, tags []string) error
	replaceCalls     int
}

func (m *mockTagRepo) ReplaceForUnit(ctx context.Context, unitID string, tags []string) error {
	m.replaceCalls++
	if m.replaceForUnitFn != nil {
		return m.replaceForUnitFn(ctx, unitID, tags)
	}
	return nil
}
func (m *mockTagRepo) ListByUnitID(ctx context.Context, unitID string) ([]string, error) {
	return nil, nil
}
func (m *mockTagRepo) ListByUnitIDs(ctx context.Context, unitIDs []string) (map[string][]string, error) {
	return nil, nil
}

func ownedUnitRepo() *mockUnitRepo {
	return &mockUnitRepo{
		findByIDFn: func(ctx context.Context, unitID, userID string) (*model.Unit, error) {
			return &model.Unit{ID: unitID, UserID: userID}, nil
		},
	}
}

// --- テスト ---

// TestValidateCSV はタグCSVの正規化ルールを検証する。
func TestValidateCSV(t *testing.T) {
	longTag := strings.Repeat("x", 41)

	tests := []struct {
		name        string
		csv         string
		wantTags    []string
		wantInvalid int
	}{
		{
			name:     "重複は初出のみ残す",
			csv:      "a,a,b",
			wantTags: []string{"a", "b"},
		},
		{
			name:        "空セグメントは捨て長すぎるタグは無効",
			csv:         ",," + longTag + ",ok",
			wantTags:    []string{"ok"},
			wantInvalid: 1,
		},
		{
			name:     "前後の空白は除去",
			csv:      " work , report ",
			wantTags: []string{"work", "report"},
		},
		{
			name:     "40文字ちょうどは有効",
			csv:      strings.Repeat("y", 40),
			wantTags: []string{strings.Repeat("y", 40)},
		},
		{
			name:        "カンマ5個以上は全体を拒否",
			csv:         "a,b,c,d,e,f",
			wantInvalid: 1,
		},
		{
			name:     "マルチバイト文字はコードポイント数で数える",
			csv:      strings.Repeat("あ", 40),
			wantTags: []string{strings.Repeat("あ", 40)},
		},
		{
			name:        "マルチバイト41文字は無効",
			csv:         strings.Repeat("あ", 41),
			wantInvalid: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags, invalid := ValidateCSV(tt.csv)
			if len(invalid) != tt.wantInvalid {
				t.Fatalf("len(invalid) = %d, want %d (%v)", len(invalid), tt.wantInvalid, invalid)
			}
			if len(tags) != len(tt.wantTags) {
				t.Fatalf("tags = %v, want %v", tags, tt.wantTags)
			}
			for i := range tags {
				if tags[i] != tt.wantTags[i] {
					t.Errorf("tags[%d] = %q, want %q", i, tags[i], tt.wantTags[i])
				}
			}
		})
	}
}

// TestService_SetTags_Success はタグの一括置換を検証する。
func TestService_SetTags_Success(t *testing.T) {
	var replaced []string
	tagRepo := &mockTagRepo{
		replaceForUnitFn: func(ctx context.Context, unitID string, tags []string) error {
			replaced = tags
			return nil
		},
	}
	svc := NewService(ownedUnitRepo(), tagRepo)

	tags, err := svc.SetTags(context.Background(), "user-1", "unit-1", "work, report, work")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tags) != 2 || tags[0] != "work" || tags[1] != "report" {
		t.Errorf("tags = %v, want [work report]", tags)
	}
	if len(replaced) != 2 {
		t.Errorf("replaced = %v, want 2 tags", replaced)
	}
}

// TestService_SetTags_BlankClearsAll は空白のみのCSVで全タグがクリアされることを検証する。
func TestService_SetTags_BlankClearsAll(t *testing.T) {
	var replaced []string
	cleared := false
	tagRepo := &mockTagRepo{
		replaceForUnitFn: func(ctx context.Context, unitID string, tags []string) error {
			replaced = tags
			cleared = true
			return nil
		},
	}
	svc := NewService(ownedUnitRepo(), tagRepo)

	tags, err := svc.SetTags(context.Background(), "user-1", "unit-1", "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("tags = %v, want empty", tags)
	}
	if !cleared {
		t.Error("expected ReplaceForUnit to be called")
	}
	if len(replaced) != 0 {
		t.Errorf("replaced = %v, want empty", replaced)
	}
}

// TestService_SetTags_OnlyBlankSegments はカンマと空白だけのCSVが
// クリアではなく検証エラーになることを検証する。
func TestService_SetTags_OnlyBlankSegments(t *testing.T) {
	tagRepo := &mockTagRepo{}
	svc := NewService(ownedUnitRepo(), tagRepo)

	_, err := svc.SetTags(context.Background(), "user-1", "unit-1", " , , ")
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeValidation {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeValidation)
	}
	if tagRepo.replaceCalls != 0 {
		t.Errorf("ReplaceForUnit called %d times, want 0", tagRepo.replaceCalls)
	}
}

// TestService_SetTags_InvalidTagsDropped は無効タグを捨てて
// 有効なタグのみが適用されることを検証する。
func TestService_SetTags_InvalidTagsDropped(t *testing.T) {
	var replaced []string
	tagRepo := &mockTagRepo{
		replaceForUnitFn: func(ctx context.Context, unitID string, tags []string) error {
			replaced = tags
			return nil
		},
	}
	svc := NewService(ownedUnitRepo(), tagRepo)

	tags, err := svc.SetTags(context.Background(), "user-1", "unit-1", strings.Repeat("x", 41)+",ok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tags) != 1 || tags[0] != "ok" {
		t.Errorf("tags = %v, want [ok]", tags)
	}
	if len(replaced) != 1 || replaced[0] != "ok" {
		t.Errorf("replaced = %v, want [ok]", replaced)
	}
}

// TestService_SetTags_NoValidTags は有効なタグが1件も残らない場合に
// 既存タグ集合に一切手を付けないことを検証する。
func TestService_SetTags_NoValidTags(t *testing.T) {
	tagRepo := &mockTagRepo{}
	svc := NewService(ownedUnitRepo(), tagRepo)

	_, err := svc.SetTags(context.Background(), "user-1", "unit-1", strings.Repeat("z", 41))
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeValidation {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeValidation)
	}
	if tagRepo.replaceCalls != 0 {
		t.Errorf("ReplaceForUnit called %d times, want 0", tagRepo.replaceCalls)
	}
}

// TestService_SetTags_TooManySegments はカンマ数超過の事前チェックを検証する。
func TestService_SetTags_TooManySegments(t *testing.T) {
	tagRepo := &mockTagRepo{}
	svc := NewService(ownedUnitRepo(), tagRepo)

	_, err := svc.SetTags(context.Background(), "user-1", "unit-1", "a,b,c,d,e,f")
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeValidation {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeValidation)
	}
	if tagRepo.replaceCalls != 0 {
		t.Errorf("ReplaceForUnit called %d times, want 0", tagRepo.replaceCalls)
	}
}

// TestService_SetTags_UnitNotFound は他ユーザー所有・未存在のユニットへの
// タグ付けが拒否されることを検証する。
func TestService_SetTags_UnitNotFound(t *testing.T) {
	unitRepo := &mockUnitRepo{
		findByIDFn: func(ctx context.Context, unitID, userID string) (*model.Unit, error) {
			return nil, nil
		},
	}
	svc := NewService(unitRepo, &mockTagRepo{})

	_, err := svc.SetTags(context.Background(), "user-1", "unit-x", "work")
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUnitNotFound {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeUnitNotFound)
	}
}
