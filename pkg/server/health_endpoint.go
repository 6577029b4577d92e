package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthCheckerInterface проверяет зависимости сервиса
type HealthCheckerInterface interface {
	// IsDatabaseHealthy проверяет здоровье PostgreSQL
	IsDatabaseHealthy(ctx context.Context) bool

	// IsRedisHealthy проверяет здоровье Redis
	IsRedisHealthy(ctx context.Context) bool
}

// HealthCheck HTTP эндпоинты liveness/readiness и фоновый мониторинг зависимостей
type HealthCheck struct {
	checker  HealthCheckerInterface
	logger   *zap.Logger
	version  string
	interval time.Duration
	server   *http.Server
	stop     chan struct{}
	stopOnce sync.Once

	// onReadyChange вызывается при смене готовности (например, для gRPC health)
	onReadyChange func(ready bool)

	mu       sync.RWMutex
	postgres string
	redis    string
}

// HealthResponse представляет ответ эндпоинта проверки здоровья
type HealthResponse struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
}

// NewHealthCheck создает новый сервис проверки здоровья
func NewHealthCheck(checker HealthCheckerInterface, logger *zap.Logger, version string) *HealthCheck {
	return &HealthCheck{
		checker:  checker,
		logger:   logger,
		version:  version,
		interval: 10 * time.Second,
		stop:     make(chan struct{}),
		postgres: "unknown",
		redis:    "unknown",
	}
}

// OnReadyChange регистрирует обработчик смены готовности
func (h *HealthCheck) OnReadyChange(fn func(ready bool)) {
	h.onReadyChange = fn
}

// Handler возвращает маршруты проверки здоровья
func (h *HealthCheck) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", h.livenessHandler)
	mux.HandleFunc("/health/ready", h.readinessHandler)
	mux.HandleFunc("/health", h.healthHandler)
	return mux
}

// StartServer запускает HTTP сервер для проверки здоровья и фоновый мониторинг
func (h *HealthCheck) StartServer(port int) {
	h.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		h.logger.Info("Starting health check server", zap.Int("port", port))
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("Health check server failed", zap.Error(err))
		}
	}()

	// Первая проверка сразу, чтобы readiness не ждал тика
	h.checkServicesHealth()
	go h.monitorHealth()
}

// Stop останавливает мониторинг и HTTP сервер
func (h *HealthCheck) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stop) })
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HealthCheck) livenessHandler(w http.ResponseWriter, r *http.Request) {
	writeHealthJSON(w, http.StatusOK, map[string]string{"status": "up"})
}

func (h *HealthCheck) readinessHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	pgStatus := h.postgres
	h.mu.RUnlock()

	// Без PostgreSQL подбор пар невозможен
	if pgStatus != "up" {
		writeHealthJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "down",
			"message": "PostgreSQL is not available",
		})
		return
	}
	writeHealthJSON(w, http.StatusOK, map[string]string{"status": "up"})
}

func (h *HealthCheck) healthHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	services := map[string]string{
		"service":  "up",
		"postgres": h.postgres,
		"redis":    h.redis,
	}
	h.mu.RUnlock()

	status, code := "up", http.StatusOK
	if services["postgres"] != "up" {
		status, code = "down", http.StatusServiceUnavailable
	} else if services["redis"] != "up" {
		// Redis только кэш и блокировки: работаем в деградированном режиме
		status = "degraded"
	}

	writeHealthJSON(w, code, HealthResponse{
		Status:    status,
		Services:  services,
		Timestamp: time.Now(),
		Version:   h.version,
	})
}

func (h *HealthCheck) monitorHealth() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.checkServicesHealth()
		case <-h.stop:
			return
		}
	}
}

// checkServicesHealth проверяет здоровье всех зависимостей
func (h *HealthCheck) checkServicesHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pgStatus := "up"
	if !h.checker.IsDatabaseHealthy(ctx) {
		pgStatus = "down"
		h.logger.Warn("PostgreSQL health check failed")
	}

	redisStatus := "up"
	if !h.checker.IsRedisHealthy(ctx) {
		redisStatus = "degraded"
		h.logger.Warn("Redis health check failed")
	}

	h.mu.Lock()
	wasReady := h.postgres == "up"
	h.postgres = pgStatus
	h.redis = redisStatus
	h.mu.Unlock()

	if ready := pgStatus == "up"; ready != wasReady && h.onReadyChange != nil {
		h.onReadyChange(ready)
	}
}

func writeHealthJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
