// Package tag はタグCSVの検証とユニットへのタグ付与のドメインロジックを提供する。
package tag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/pomon/internal/model"
	"github.com/hitoshi/pomon/internal/repository"
)

// InvalidTag は検証に失敗したタグとその理由を表す。
type InvalidTag struct {
	Tag    string
	Reason string
}

// ValidateCSV はカンマ区切りのタグ文字列を検証し、正規化済みタグ一覧と
// 無効タグ一覧を返す。正規化は次の順で行う。
//
//  1. カンマ数が上限以上なら全体を拒否する（タグ最大数の事前チェック）
//  2. 各セグメントの前後空白を除去する
//  3. 空白のみのセグメントは黙って捨てる
//  4. 重複は初出のみ残す
//  5. 最大文字数（コードポイント数）を超えるタグは無効として報告する
//
// 無効タグは理由付きで報告され、適用時には黙って捨てられる。
// 有効なタグが1件も残らない場合のみ呼び出し側は適用を拒否すること。
func ValidateCSV(csv string) ([]string, []InvalidTag) {
	if strings.Count(csv, ",") >= model.MaxTagSegments {
		return nil, []InvalidTag{{
			Tag:    csv,
			Reason: fmt.Sprintf("タグは%d個までです", model.MaxTagSegments),
		}}
	}

	var tags []string
	var invalid []InvalidTag
	seen := make(map[string]struct{})

	for _, segment := range strings.Split(csv, ",") {
		tag := strings.TrimSpace(segment)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}

		if utf8.RuneCountInString(tag) > model.MaxTagLength {
			invalid = append(invalid, InvalidTag{
				Tag:    tag,
				Reason: fmt.Sprintf("タグは%d文字以内である必要があります", model.MaxTagLength),
			})
			continue
		}
		tags = append(tags, tag)
	}

	return tags, invalid
}

// Service はタグ付与のサービス層。
type Service struct {
	unitRepo repository.UnitRepository
	tagRepo  repository.TagRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(unitRepo repository.UnitRepository, tagRepo repository.TagRepository) *Service {
	return &Service{
		unitRepo: unitRepo,
		tagRepo:  tagRepo,
	}
}

// SetTags はユニットのタグ集合をCSV文字列から一括置換する。
// 空または空白のみのCSVは全タグのクリアを意味する。
// 無効なタグは捨てて有効なタグのみを適用する。有効なタグが1件も
// 残らない場合は何も置換せず検証エラーを返す。
func (s *Service) SetTags(ctx context.Context, userID, unitID, csv string) ([]string, error) {
	unit, err := s.unitRepo.FindByID(ctx, unitID, userID)
	if err != nil {
		return nil, fmt.Errorf("ユニットの取得に失敗しました: %w", err)
	}
	if unit == nil {
		return nil, model.NewUnitNotFoundError(unitID)
	}

	if strings.TrimSpace(csv) == "" {
		if err := s.tagRepo.ReplaceForUnit(ctx, unitID, nil); err != nil {
			return nil, fmt.Errorf("タグのクリアに失敗しました: %w", err)
		}
		return []string{}, nil
	}

	tags, invalid := ValidateCSV(csv)
	if len(tags) == 0 {
		// 有効なタグがゼロ件の場合のみ既存集合に手を付けずに拒否する
		if len(invalid) > 0 {
			reasons := make([]string, len(invalid))
			for i, iv := range invalid {
				reasons[i] = iv.Reason
			}
			return nil, model.NewValidationError(strings.Join(reasons, " / "))
		}
		return nil, model.NewValidationError("有効なタグがありません")
	}

	if err := s.tagRepo.ReplaceForUnit(ctx, unitID, tags); err != nil {
		return nil, fmt.Errorf("タグの置換に失敗しました: %w", err)
	}

	return tags, nil
}
