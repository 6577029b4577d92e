package grpc

import (
	"context"
	"encoding/json"
	"errors"

	"SportMatchService/internal/models"
	"SportMatchService/internal/service"
	"SportMatchService/pkg/apperrors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// MatchHandler представляет обработчик gRPC запросов
type MatchHandler struct {
	profiles service.ProfileServiceInterface
	matches  service.MatchServiceInterface
	logger   *zap.Logger
}

// NewMatchHandler создает новый экземпляр MatchHandler
func NewMatchHandler(profiles service.ProfileServiceInterface, matches service.MatchServiceInterface, logger *zap.Logger) *MatchHandler {
	return &MatchHandler{
		profiles: profiles,
		matches:  matches,
		logger:   logger,
	}
}

// telegramIDRequest запрос, состоящий из одного идентификатора
type telegramIDRequest struct {
	TelegramID models.FlexibleID `json:"telegramId"`
}

// EnsureUser находит или создает пользователя по данным Telegram
func (h *MatchHandler) EnsureUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req models.TelegramUser
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	user, err := h.profiles.EnsureUser(ctx, req)
	return h.reply(user, err)
}

// GetUser возвращает пользователя по Telegram ID
func (h *MatchHandler) GetUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req telegramIDRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	user, err := h.profiles.LoadUser(ctx, req.TelegramID.String())
	return h.reply(user, err)
}

// SaveProfile сохраняет профиль пользователя
func (h *MatchHandler) SaveProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req models.SaveProfileRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	user, err := h.profiles.SaveProfile(ctx, req.TelegramID.String(), req.ProfileUpdate)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return h.reply(models.SaveProfileResponse{Success: true, User: user}, nil)
}

// SavePreferences заменяет предпочтения по видам спорта
func (h *MatchHandler) SavePreferences(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req models.SavePreferencesRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	user, err := h.profiles.SavePreferences(ctx, req.TelegramID.String(), req.MatchPreferences)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return h.reply(models.SaveProfileResponse{Success: true, User: user}, nil)
}

// IncreasePoints начисляет очки
func (h *MatchHandler) IncreasePoints(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req models.IncreasePointsRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	user, err := h.profiles.IncreasePoints(ctx, req.TelegramID.String(), req.Amount)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return h.reply(models.PointsResponse{Success: true, Points: user.Points}, nil)
}

// FindMatch подбирает пару
func (h *MatchHandler) FindMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req models.MatchRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	requesterID := req.TelegramID.String()
	match, err := h.matches.FindMatch(ctx, requesterID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return h.reply(models.NewMatchResponse(match, requesterID), nil)
}

// GetMatch возвращает пару пользователя
func (h *MatchHandler) GetMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req telegramIDRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	telegramID := req.TelegramID.String()
	match, err := h.matches.GetMatch(ctx, telegramID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return h.reply(models.NewMatchResponse(match, telegramID), nil)
}

// PreviewCandidates возвращает подходящих кандидатов без фиксации пары
func (h *MatchHandler) PreviewCandidates(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req telegramIDRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	candidates, err := h.matches.PreviewCandidates(ctx, req.TelegramID.String())
	if err != nil {
		return nil, h.toStatus(err)
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	return h.reply(map[string][]models.Candidate{"candidates": candidates}, nil)
}

// reply преобразует результат сервиса в Struct или ошибку в статус
func (h *MatchHandler) reply(v interface{}, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, h.toStatus(err)
	}

	out, err := encode(v)
	if err != nil {
		h.logger.Error("Failed to encode gRPC response", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

// toStatus сопоставляет вид ошибки с кодом gRPC
func (h *MatchHandler) toStatus(err error) error {
	code := Code(err)
	if code == codes.Internal {
		h.logger.Error("Request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

// Code возвращает код gRPC для ошибки сервиса
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, apperrors.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, apperrors.ErrAlreadyMatched):
		return codes.FailedPrecondition
	case errors.Is(err, apperrors.ErrConcurrencyConflict):
		return codes.Aborted
	case errors.Is(err, apperrors.ErrNoMatchFound), apperrors.IsNotFound(err):
		return codes.NotFound
	default:
		return codes.Internal
	}
}

// decode переносит поля Struct в запрос через JSON.
// AsMap дает float64 для чисел; encoding/json печатает их без экспоненты, поэтому FlexibleID разбирается корректно.
func decode(in *structpb.Struct, dst interface{}) error {
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func encode(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}
