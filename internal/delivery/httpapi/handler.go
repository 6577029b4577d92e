package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"SportMatchService/internal/models"
	"SportMatchService/internal/service"
	"SportMatchService/pkg/apperrors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 5 * time.Second
	maxBodyBytes      = 1 << 20
)

// Handler обрабатывает JSON запросы Mini App
type Handler struct {
	profiles service.ProfileServiceInterface
	matches  service.MatchServiceInterface
	logger   *zap.Logger
}

// NewHandler создает новый экземпляр Handler
func NewHandler(profiles service.ProfileServiceInterface, matches service.MatchServiceInterface, logger *zap.Logger) *Handler {
	return &Handler{
		profiles: profiles,
		matches:  matches,
		logger:   logger,
	}
}

// errorResponse тело ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// EnsureUser находит или создает пользователя по данным Telegram WebApp
func (h *Handler) EnsureUser(w http.ResponseWriter, r *http.Request) {
	var req models.TelegramUser
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.profiles.EnsureUser(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// GetUser возвращает профиль пользователя
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.profiles.LoadUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// SaveProfile сохраняет пол, возраст, виды спорта и районы
func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	var req models.SaveProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.profiles.SaveProfile(r.Context(), req.TelegramID.String(), req.ProfileUpdate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, models.SaveProfileResponse{Success: true, User: user})
}

// SavePreferences заменяет предпочтения по видам спорта
func (h *Handler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	var req models.SavePreferencesRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.profiles.SavePreferences(r.Context(), req.TelegramID.String(), req.MatchPreferences); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// IncreasePoints начисляет очки пользователю
func (h *Handler) IncreasePoints(w http.ResponseWriter, r *http.Request) {
	var req models.IncreasePointsRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.profiles.IncreasePoints(r.Context(), req.TelegramID.String(), req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, models.PointsResponse{Success: true, Points: user.Points})
}

// FindMatch подбирает пару
func (h *Handler) FindMatch(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	requesterID := req.TelegramID.String()
	match, err := h.matches.FindMatch(r.Context(), requesterID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, models.NewMatchResponse(match, requesterID))
}

// GetMatch возвращает пару пользователя
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	telegramID := chi.URLParam(r, "id")
	match, err := h.matches.GetMatch(r.Context(), telegramID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, models.NewMatchResponse(match, telegramID))
}

// PreviewCandidates возвращает кандидатов без фиксации пары
func (h *Handler) PreviewCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.matches.PreviewCandidates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	h.writeJSON(w, http.StatusOK, map[string][]models.Candidate{"candidates": candidates})
}

// decode читает JSON тело запроса; при ошибке сам пишет ответ 400
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) {
		err = errors.New("request body is empty")
	}
	h.writeError(w, r, apperrors.Validation("", "invalid request body: %v", err))
	return false
}

// StatusCode сопоставляет вид ошибки с HTTP статусом
func StatusCode(err error) int {
	switch apperrors.Kind(err) {
	case "validation_error":
		return http.StatusBadRequest
	case "not_found", "no_match_found":
		return http.StatusNotFound
	case "already_matched", "concurrency_conflict":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	resp := errorResponse{Error: apperrors.Kind(err), Message: err.Error()}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Field = appErr.Field
	}

	if code == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		resp.Message = "internal server error"
	}

	h.writeJSON(w, code, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to write response", zap.Error(err))
	}
}
