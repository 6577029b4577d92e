package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen возвращается, когда circuit breaker не пропускает вызов
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState представляет состояние circuit breaker
type CircuitState int

const (
	// CircuitClosed нормальное состояние, вызовы проходят
	CircuitClosed CircuitState = iota
	// CircuitHalfOpen пробное состояние после таймаута
	CircuitHalfOpen
	// CircuitOpen вызовы отклоняются до истечения таймаута
	CircuitOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	case CircuitOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker размыкает цепь после серии ошибок хранилища
type CircuitBreaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration
	ignoredErrors    []error
	onStateChange    func(name string, state CircuitState)
	logger           *zap.Logger

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	lastStateChange time.Time
	trialInFlight   bool
}

// Option настраивает CircuitBreaker
type Option func(*CircuitBreaker)

// WithIgnoredErrors задает ошибки бизнес-логики, которые не считаются отказом
func WithIgnoredErrors(errs ...error) Option {
	return func(cb *CircuitBreaker) {
		cb.ignoredErrors = append(cb.ignoredErrors, errs...)
	}
}

// WithStateChangeHook вызывается при каждом переходе состояния (например, для метрик)
func WithStateChangeHook(fn func(name string, state CircuitState)) Option {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = fn
	}
}

// NewCircuitBreaker создает новый экземпляр CircuitBreaker
func NewCircuitBreaker(name string, failureThreshold int, resetTimeout time.Duration, logger *zap.Logger, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		logger:           logger,
		state:            CircuitClosed,
		lastStateChange:  time.Now(),
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Execute выполняет функцию с учетом состояния circuit breaker
func (cb *CircuitBreaker) Execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	admitted, trial := cb.allow(operation)
	if !admitted {
		cb.logger.Warn("Circuit breaker rejected operation",
			zap.String("breaker", cb.name),
			zap.String("operation", operation))
		return ErrCircuitOpen
	}

	err := fn(ctx)
	cb.record(operation, err, trial)
	return err
}

// State возвращает текущее состояние
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// allow решает, пропускать ли вызов; в полуоткрытом состоянии пропускается одна проба.
// trial сообщает, что вызов допущен как проба.
func (cb *CircuitBreaker) allow(operation string) (admitted, trial bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true, false
	case CircuitOpen:
		if time.Since(cb.lastStateChange) < cb.resetTimeout {
			return false, false
		}
		cb.transition(CircuitHalfOpen, operation)
		cb.trialInFlight = true
		return true, true
	case CircuitHalfOpen:
		if cb.trialInFlight {
			return false, false
		}
		cb.trialInFlight = true
		return true, true
	}
	return false, false
}

// record учитывает результат вызова. Из полуоткрытого состояния цепь выводит только проба.
func (cb *CircuitBreaker) record(operation string, err error, trial bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil && !cb.isIgnored(err)

	if trial {
		cb.trialInFlight = false
		if failed {
			cb.transition(CircuitOpen, operation)
		} else {
			cb.transition(CircuitClosed, operation)
		}
		return
	}

	// Вызов, допущенный до размыкания, завершился позже: его результат устарел
	if cb.state != CircuitClosed {
		return
	}

	if !failed {
		cb.failureCount = 0
		return
	}
	cb.failureCount++
	if cb.failureCount >= cb.failureThreshold {
		cb.transition(CircuitOpen, operation)
	}
}

func (cb *CircuitBreaker) isIgnored(err error) bool {
	// Отмена запроса клиентом не говорит о проблемах хранилища
	if errors.Is(err, context.Canceled) {
		return true
	}
	for _, ignored := range cb.ignoredErrors {
		if errors.Is(err, ignored) {
			return true
		}
	}
	return false
}

// transition вызывается под мьютексом
func (cb *CircuitBreaker) transition(to CircuitState, operation string) {
	from := cb.state
	cb.state = to
	cb.lastStateChange = time.Now()
	if to == CircuitClosed {
		cb.failureCount = 0
	}

	cb.logger.Info("Circuit breaker state changed",
		zap.String("breaker", cb.name),
		zap.String("operation", operation),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Int("failures", cb.failureCount))

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, to)
	}
}
