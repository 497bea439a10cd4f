// Package shutdown предоставляет корректное завершение приложения
// по сигналам SIGINT/SIGTERM или по отмене контекста.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tracker/pkg/logger"
)

// Константы для логирования.
const (
	LogShutdownStarted  = "shutdown started"
	LogShutdownHookFail = "shutdown hook failed"
	LogShutdownTimeout  = "shutdown timed out"
)

// Hook - действие, выполняемое при завершении.
type Hook func(context.Context) error

// Wait блокируется до получения SIGINT/SIGTERM или отмены ctx,
// затем параллельно выполняет хуки в пределах timeout.
func Wait(ctx context.Context, timeout time.Duration, hooks ...Hook) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	log := logger.Log(ctx)

	select {
	case sig := <-sigCh:
		log.Info(ctx, LogShutdownStarted, zap.String("signal", sig.String()))
	case <-ctx.Done():
		log.Info(ctx, LogShutdownStarted, zap.NamedError("cause", ctx.Err()))
	}

	Run(context.WithoutCancel(ctx), timeout, hooks...)
}

// Run выполняет хуки параллельно и ждет их завершения не дольше timeout.
func Run(ctx context.Context, timeout time.Duration, hooks ...Hook) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := logger.Log(ctx)

	var wgp sync.WaitGroup
	for i, hook := range hooks {
		wgp.Add(1)
		go func(idx int, fn Hook) {
			defer wgp.Done()
			if err := fn(ctx); err != nil {
				log.Warn(ctx, LogShutdownHookFail, zap.Int("hook", idx), zap.Error(err))
			}
		}(i, hook)
	}

	done := make(chan struct{})
	go func() {
		wgp.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn(ctx, LogShutdownTimeout, zap.Duration("timeout", timeout))
	}
}
