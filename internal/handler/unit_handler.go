// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pomon/internal/middleware"
	"github.com/hitoshi/pomon/internal/model"
)

// UnitServiceInterface はユニットハンドラーが必要とするサービスインターフェース。
type UnitServiceInterface interface {
	// Start は新しいユニットを開始する。secondsが0の場合はデフォルト期間を適用する。
	Start(ctx context.Context, userID string, seconds int, description string) (*model.Unit, error)
	// Complete は指定ユニットに完了マークを付ける。ガード条件を満たさない場合はfalseを返す。
	Complete(ctx context.Context, userID, unitID string) (bool, error)
	// Cancel は進行中（期限前）ユニットを削除する。対象がない場合はfalseを返す。
	Cancel(ctx context.Context, userID string) (bool, error)
	// Current はアクティブなユニットをタグ付きで返す。
	Current(ctx context.Context, userID string) (*model.Unit, error)
	// Get は指定ユニットをタグ付きで返す。
	Get(ctx context.Context, userID, unitID string) (*model.Unit, error)
	// ListRange は start_time が範囲内のユニットをタグ付きで新しい順に返す。
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]*model.Unit, error)
}

// TagServiceInterface はタグ付与ハンドラーが必要とするサービスインターフェース。
type TagServiceInterface interface {
	// SetTags はユニットのタグ集合をCSV文字列から一括置換する。
	SetTags(ctx context.Context, userID, unitID, csv string) ([]string, error)
}

// UnitHandler はユニットライフサイクルのHTTPハンドラー。
type UnitHandler struct {
	unitService UnitServiceInterface
	tagService  TagServiceInterface
}

// NewUnitHandler はUnitHandlerを生成する。
func NewUnitHandler(unitService UnitServiceInterface, tagService TagServiceInterface) *UnitHandler {
	return &UnitHandler{
		unitService: unitService,
		tagService:  tagService,
	}
}

// startUnitRequest はユニット開始リクエストのボディ。
// duration_secondsの省略はデフォルト期間の適用を意味する。
// 明示的な0は省略とは区別し、検証エラーとして拒否する。
type startUnitRequest struct {
	DurationSeconds *int   `json:"duration_seconds"`
	Description     string `json:"description"`
}

// setTagsRequest はタグ置換リクエストのボディ。タグはカンマ区切りで指定する。
type setTagsRequest struct {
	Tags string `json:"tags"`
}

// unitResponse はユニット情報のAPIレスポンス。
// stateとremaining_secondsはリクエスト時刻を基準に導出する。
type unitResponse struct {
	ID               string    `json:"id"`
	Completed        bool      `json:"completed"`
	Description      string    `json:"description"`
	StartTime        time.Time `json:"start_time"`
	ExpiryTime       time.Time `json:"expiry_time"`
	State            string    `json:"state"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Tags             []string  `json:"tags"`
}

// setTagsResponse はタグ置換後のAPIレスポンス。
type setTagsResponse struct {
	UnitID string   `json:"unit_id"`
	Tags   []string `json:"tags"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// StartUnit は新しいユニットを開始する。
// POST /api/units
func (h *UnitHandler) StartUnit(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req startUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	seconds := 0
	if req.DurationSeconds != nil {
		seconds = *req.DurationSeconds
		if seconds <= 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("ユニットの期間は正の秒数で指定してください。"))
			return
		}
	}

	unit, err := h.unitService.Start(r.Context(), userID, seconds, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toUnitResponse(unit, time.Now()))
}

// GetOngoing は現在アクティブな（進行中または猶予期間内の）ユニットを返す。
// GET /api/units/ongoing
func (h *UnitHandler) GetOngoing(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	unit, err := h.unitService.Current(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUnitResponse(unit, time.Now()))
}

// CancelOngoing は進行中（期限前）のユニットをキャンセルする。
// 期限後のユニットは猶予期間内であってもキャンセルできない。
// DELETE /api/units/ongoing
func (h *UnitHandler) CancelOngoing(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	cancelled, err := h.unitService.Cancel(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !cancelled {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewUnitNotCancellableError())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CompleteUnit は指定ユニットに完了マークを付ける。
// 完了マークは期限後の猶予期間内にのみ受け付ける。
// PUT /api/units/{id}/complete
func (h *UnitHandler) CompleteUnit(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	unitID := chi.URLParam(r, "id")

	completed, err := h.unitService.Complete(r.Context(), userID, unitID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !completed {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewUnitNotCompletableError())
		return
	}

	unit, err := h.unitService.Get(r.Context(), userID, unitID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUnitResponse(unit, time.Now()))
}

// SetTags はユニットのタグ集合を一括置換する。
// 空のタグ文字列は全タグのクリアを意味する。
// PUT /api/units/{id}/tags
func (h *UnitHandler) SetTags(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	unitID := chi.URLParam(r, "id")

	var req setTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	tags, err := h.tagService.SetTags(r.Context(), userID, unitID, req.Tags)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(setTagsResponse{
		UnitID: unitID,
		Tags:   tags,
	})
}

// GetUnit は指定ユニットの詳細を返す。
// GET /api/units/{id}
func (h *UnitHandler) GetUnit(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	unitID := chi.URLParam(r, "id")

	unit, err := h.unitService.Get(r.Context(), userID, unitID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUnitResponse(unit, time.Now()))
}

// ListUnits は指定期間に開始されたユニットの一覧を新しい順に返す。
// fromとtoは必須で、RFC3339または日付のみ（YYYY-MM-DD）で指定する。
// 日付のみのtoはその日の終わりまでを含むと解釈する。
// GET /api/units?from=...&to=...
func (h *UnitHandler) ListUnits(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	fromParam := r.URL.Query().Get("from")
	toParam := r.URL.Query().Get("to")
	if fromParam == "" || toParam == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("fromとtoの両方を指定してください。"))
		return
	}

	from, err := parseRangeBound(fromParam, false)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("fromの形式が不正です。RFC3339またはYYYY-MM-DDで指定してください。"))
		return
	}
	to, err := parseRangeBound(toParam, true)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("toの形式が不正です。RFC3339またはYYYY-MM-DDで指定してください。"))
		return
	}

	units, err := h.unitService.ListRange(r.Context(), userID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	now := time.Now()
	responses := make([]unitResponse, len(units))
	for i, u := range units {
		responses[i] = toUnitResponse(u, now)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"units": responses,
	})
}

// --- ヘルパー関数 ---

// parseRangeBound は期間指定パラメータをパースする。
// RFC3339を優先し、日付のみ（YYYY-MM-DD）にもフォールバックする。
// endOfDayがtrueの場合、日付のみの指定はその日の終わりとして扱う。
func parseRangeBound(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return t.Add(24*time.Hour - time.Nanosecond), nil
	}
	return t, nil
}

// toUnitResponse はmodel.UnitからAPIレスポンスに変換する。
// 状態と残り時間はnowを基準に導出する。
func toUnitResponse(unit *model.Unit, now time.Time) unitResponse {
	tags := unit.Tags
	if tags == nil {
		tags = []string{}
	}
	return unitResponse{
		ID:               unit.ID,
		Completed:        unit.Completed,
		Description:      unit.Description,
		StartTime:        unit.StartTime,
		ExpiryTime:       unit.ExpiryTime,
		State:            string(unit.StateAt(now)),
		RemainingSeconds: int(unit.RemainingAt(now).Seconds()),
		Tags:             tags,
	}
}

// writeUnauthorizedResponse は認証エラーレスポンスを書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeHasOngoingUnit:
		return http.StatusConflict
	case model.ErrCodeNoOngoingUnit:
		return http.StatusNotFound
	case model.ErrCodeUnitNotFound:
		return http.StatusNotFound
	case model.ErrCodeUnitNotCompletable, model.ErrCodeUnitNotCancellable:
		return http.StatusConflict
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidProvider:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
