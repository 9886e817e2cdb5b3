package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"agent-compare/internal/application/port/input"
	"agent-compare/internal/di"
	"agent-compare/internal/domain/entity"
	"agent-compare/internal/infrastructure/env"
	"agent-compare/internal/infrastructure/userinteraction"
)

func main() {
	envService := env.NewEnvService()
	cfg := di.LoadConfig(envService)
	// Keep the terminal readable; panes and progress carry the information.
	cfg.LogLevel = envService.GetWithDefault("LOG_LEVEL", "warn")

	ctx, quit := context.WithCancel(context.Background())
	defer quit()
	interrupts := &interruptHandler{quit: quit}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		for sig := range sigs {
			if sig == syscall.SIGTERM {
				quit()
				continue
			}
			interrupts.interrupt()
		}
	}()

	console := userinteraction.NewConsole(os.Stdin, os.Stdout)

	container, err := di.NewContainer(cfg, di.WithObserver(console))
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer container.Close()

	cred := entity.Credential(strings.TrimSpace(cfg.OpenAIAPIKey))
	if cred.IsEmpty() {
		key, err := console.AskQuestion(ctx, "OpenAI API key:")
		if err != nil {
			log.Fatalf("read API key: %v", err)
		}
		cred = entity.Credential(key)
	}

	if !container.KeyValidator.Validate(ctx, cred) {
		console.ShowError("Invalid API key")
		os.Exit(1)
	}
	console.ShowInfo(fmt.Sprintf("Model %s, agent limited to %d turns. Type 'exit' to quit.", cfg.OpenAIModel, cfg.AgentMaxIterations))

	for ctx.Err() == nil {
		question, err := console.AskQuestion(ctx, "Question:")
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			console.ShowError(err.Error())
			return
		}
		switch strings.ToLower(question) {
		case "":
			continue
		case "exit", "quit":
			return
		}

		questionCtx, done := interrupts.begin(ctx)
		reqCtx, cancel := context.WithTimeout(questionCtx, cfg.RequestTimeout)
		err = container.Comparer.Stream(reqCtx, input.CompareRequest{
			Credential: cred,
			UserInput:  question,
		}, console.ShowAnswer)
		cancel()
		cancelled := questionCtx.Err() != nil && ctx.Err() == nil
		done()
		switch {
		case cancelled:
			console.ShowInfo("Cancelled.")
		case entity.IsRejection(err):
			console.ShowError(err.Error())
		case err != nil:
			container.Logger.Warn("Comparison finished with errors", "error", err)
		}
	}
}

// interruptHandler routes Ctrl+C. While a comparison runs the first interrupt
// cancels it; an interrupt with nothing running ends the session.
type interruptHandler struct {
	mu      sync.Mutex
	running context.CancelFunc
	quit    context.CancelFunc
}

// begin derives the context of one comparison. done must be called when the
// comparison returns.
func (h *interruptHandler) begin(parent context.Context) (ctx context.Context, done func()) {
	ctx, cancel := context.WithCancel(parent)
	h.mu.Lock()
	h.running = cancel
	h.mu.Unlock()
	return ctx, func() {
		h.mu.Lock()
		h.running = nil
		h.mu.Unlock()
		cancel()
	}
}

func (h *interruptHandler) interrupt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running != nil {
		h.running()
		h.running = nil
		return
	}
	h.quit()
}
