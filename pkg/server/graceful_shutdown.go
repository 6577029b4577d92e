package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type shutdownStep struct {
	name string
	fn   func(context.Context) error
}

// GracefulShutdown останавливает компоненты сервиса в обратном порядке регистрации
type GracefulShutdown struct {
	logger  *zap.Logger
	timeout time.Duration
	signals chan os.Signal
	trigger chan struct{}
	done    chan struct{}

	mu        sync.Mutex
	steps     []shutdownStep
	triggered sync.Once
	once      sync.Once
	err       error
}

// NewGracefulShutdown создает GracefulShutdown и подписывается на SIGINT/SIGTERM
func NewGracefulShutdown(logger *zap.Logger, timeout time.Duration) *GracefulShutdown {
	gs := &GracefulShutdown{
		logger:  logger,
		timeout: timeout,
		signals: make(chan os.Signal, 1),
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
	signal.Notify(gs.signals, syscall.SIGINT, syscall.SIGTERM)
	return gs
}

// AddShutdownFunc регистрирует шаг остановки
func (gs *GracefulShutdown) AddShutdownFunc(name string, fn func(context.Context) error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.steps = append(gs.steps, shutdownStep{name: name, fn: fn})
}

// Wait блокирует выполнение до сигнала, Trigger или отмены ctx, затем выполняет остановку
func (gs *GracefulShutdown) Wait(ctx context.Context) error {
	select {
	case sig := <-gs.signals:
		gs.logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case <-gs.trigger:
		gs.logger.Info("Shutdown triggered")
	case <-ctx.Done():
		gs.logger.Info("Context cancelled, initiating shutdown")
	}

	gs.once.Do(func() {
		signal.Stop(gs.signals)
		gs.err = gs.shutdown()
		close(gs.done)
	})
	<-gs.done
	return gs.err
}

// Trigger инициирует остановку без сигнала ОС, например при падении сервера
func (gs *GracefulShutdown) Trigger() {
	gs.triggered.Do(func() { close(gs.trigger) })
}

// Done закрывается после выполнения всех шагов
func (gs *GracefulShutdown) Done() <-chan struct{} {
	return gs.done
}

func (gs *GracefulShutdown) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	gs.mu.Lock()
	steps := make([]shutdownStep, len(gs.steps))
	copy(steps, gs.steps)
	gs.mu.Unlock()

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.fn(ctx); err != nil {
			gs.logger.Error("Shutdown step failed", zap.String("step", step.name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		gs.logger.Debug("Shutdown step completed", zap.String("step", step.name))
	}

	gs.logger.Info("Graceful shutdown completed", zap.Int("failed_steps", len(errs)))
	return errors.Join(errs...)
}
