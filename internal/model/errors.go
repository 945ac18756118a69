package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, unit, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeHasOngoingUnit     = "HAS_ONGOING_UNIT"
	ErrCodeNoOngoingUnit      = "NO_ONGOING_UNIT"
	ErrCodeUnitNotFound       = "UNIT_NOT_FOUND"
	ErrCodeUnitNotCompletable = "UNIT_NOT_COMPLETABLE"
	ErrCodeUnitNotCancellable = "UNIT_NOT_CANCELLABLE"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidProvider    = "INVALID_LOGIN_PROVIDER"
)

// NewValidationError は入力値検証エラーを生成する。
// 呼び出し側が入力を修正すれば回復可能なエラー。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewHasOngoingUnitError は進行中ユニットが既に存在する場合のエラーを生成する。
// 不具合ではなく正当性ガードであり、通常の拒否として呼び出し側に返す。
func NewHasOngoingUnitError() *APIError {
	return &APIError{
		Code:     ErrCodeHasOngoingUnit,
		Message:  "進行中のユニットが既に存在します。",
		Category: "unit",
		Action:   "現在のユニットを完了またはキャンセルしてから、新しいユニットを開始してください。",
	}
}

// NewNoOngoingUnitError は進行中ユニットが存在しない場合のエラーを生成する。
func NewNoOngoingUnitError() *APIError {
	return &APIError{
		Code:     ErrCodeNoOngoingUnit,
		Message:  "進行中のユニットがありません。",
		Category: "unit",
		Action:   "新しいユニットを開始してください。",
	}
}

// NewUnitNotFoundError はユニット未検出エラーを生成する。
func NewUnitNotFoundError(unitID string) *APIError {
	return &APIError{
		Code:     ErrCodeUnitNotFound,
		Message:  fmt.Sprintf("指定されたユニットが見つかりません: %s", unitID),
		Category: "unit",
		Action:   "ユニットIDを確認してください。",
	}
}

// NewUnitNotCompletableError は完了マークのガード条件を満たさない場合のエラーを生成する。
// 期限前（まだ進行中）、猶予期間超過、完了済み、存在しない、のいずれの場合も同じ拒否となる。
func NewUnitNotCompletableError() *APIError {
	return &APIError{
		Code:     ErrCodeUnitNotCompletable,
		Message:  "このユニットは完了マークできません。",
		Category: "unit",
		Action:   "完了マークは期限後の猶予期間内にのみ行えます。",
	}
}

// NewUnitNotCancellableError はキャンセル対象の進行中ユニットがない場合のエラーを生成する。
func NewUnitNotCancellableError() *APIError {
	return &APIError{
		Code:     ErrCodeUnitNotCancellable,
		Message:  "キャンセルできる進行中のユニットがありません。",
		Category: "unit",
		Action:   "期限を過ぎたユニットはキャンセルできません。完了するか、そのまま履歴として残ります。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidProviderError は未対応のログインプロバイダーが指定された場合のエラーを生成する。
func NewInvalidProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProvider,
		Message:  fmt.Sprintf("未対応のログインプロバイダーです: %s", provider),
		Category: "auth",
		Action:   "対応しているプロバイダーでログインしてください。",
	}
}
