package apperrors

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Виды ошибок, которые сервис возвращает вызывающей стороне
var (
	// ErrValidation возвращается, когда входные данные некорректны или вне допустимого диапазона
	ErrValidation = errors.New("validation error")

	// ErrNotFound возвращается, когда запись не найдена (обобщенная ошибка)
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyMatched возвращается, когда пользователь уже состоит в паре
	ErrAlreadyMatched = errors.New("user is already matched")

	// ErrNoMatchFound возвращается, когда подходящих кандидатов сейчас нет
	ErrNoMatchFound = errors.New("no matches found")

	// ErrConcurrencyConflict возвращается, когда конкурирующий запрос успел занять кандидата первым
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrLockNotAcquired возвращается, когда блокировка пользователя уже занята другим запросом
	ErrLockNotAcquired = errors.New("lock is held by another request")

	// ErrCacheMiss возвращается, когда запись не найдена в кэше
	ErrCacheMiss = redis.Nil

	// ErrRecordNotFound возвращается, когда запись не найдена в базе данных
	ErrRecordNotFound = gorm.ErrRecordNotFound
)

// IgnoredErrors содержит ожидаемые ошибки бизнес-логики, которые не должны открывать circuit breaker
var IgnoredErrors = []error{
	ErrNotFound,
	ErrCacheMiss,
	ErrRecordNotFound,
	ErrValidation,
	ErrAlreadyMatched,
	ErrNoMatchFound,
	ErrConcurrencyConflict,
	ErrLockNotAcquired,
}

// AppError описывает ошибку с сообщением для клиента
type AppError struct {
	Err     error  // вид ошибки (одна из sentinel-ошибок выше)
	Message string // человекочитаемое описание
	Field   string // поле запроса, вызвавшее ошибку (необязательно)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation создает ошибку валидации для поля
func Validation(field, format string, args ...interface{}) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: fmt.Sprintf(format, args...),
		Field:   field,
	}
}

// NotFound создает ошибку "не найдено" для ресурса
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// IsNotFound проверяет, является ли ошибка ошибкой "запись не найдена"
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCacheMiss) ||
		errors.Is(err, ErrRecordNotFound)
}

// IsValidation проверяет, является ли ошибка ошибкой валидации
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// Kind возвращает машинно-читаемый вид ошибки для ответов API
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrAlreadyMatched):
		return "already_matched"
	case errors.Is(err, ErrNoMatchFound):
		return "no_match_found"
	case errors.Is(err, ErrConcurrencyConflict):
		return "concurrency_conflict"
	case IsNotFound(err):
		return "not_found"
	default:
		return "internal_error"
	}
}
