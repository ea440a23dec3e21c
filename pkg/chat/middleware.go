package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/germanamz/parley/pkg/backend"
	"github.com/germanamz/parley/pkg/chats/message"
)

// Invocation is one in-flight model call. Middleware may transform the
// effective Params and Vars before the call reaches the operator.
type Invocation struct {
	Messages []message.Message // Full conversation record for this call.
	Params   backend.Params    // Effective sampling parameters.
	Vars     map[string]string // Prompt template variables.
}

// Runner executes an invocation and returns the raw backend response.
type Runner interface {
	Run(ctx context.Context, inv *Invocation) (backend.Response, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, inv *Invocation) (backend.Response, error)

// Run calls the underlying function.
func (f RunnerFunc) Run(ctx context.Context, inv *Invocation) (backend.Response, error) {
	return f(ctx, inv)
}

// Middleware wraps a Runner, returning a new Runner with added behaviour.
type Middleware func(next Runner) Runner

// --- Timeout middleware ---

// Timeout returns a Middleware that wraps the call's context with a deadline.
func Timeout(d time.Duration) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, inv *Invocation) (backend.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			return next.Run(ctx, inv)
		})
	}
}

// --- Recovery middleware ---

// Recovery returns a Middleware that catches panics and converts them to errors.
func Recovery() Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, inv *Invocation) (resp backend.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("chat panicked: %v", r)
				}
			}()

			return next.Run(ctx, inv)
		})
	}
}

// --- Logger middleware ---

// Logger returns a Middleware that logs call start, duration, and error.
func Logger(log *slog.Logger, name string) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, inv *Invocation) (backend.Response, error) {
			log.InfoContext(ctx, "chat call started", "chat", name, "messages", len(inv.Messages))

			start := time.Now()

			resp, err := next.Run(ctx, inv)

			duration := time.Since(start)

			if err != nil {
				log.ErrorContext(ctx, "chat call finished with error",
					"chat", name,
					"duration", duration,
					"error", err,
				)
			} else {
				log.InfoContext(ctx, "chat call finished",
					"chat", name,
					"duration", duration,
					"tokens", resp.Usage.Total(),
				)
			}

			return resp, err
		})
	}
}

// --- OutputGuardrail middleware ---

// OutputGuardrail returns a Middleware that validates the raw reply. If check
// returns an error, that error is returned instead of the response.
func OutputGuardrail(check func(backend.Response) error) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, inv *Invocation) (backend.Response, error) {
			resp, err := next.Run(ctx, inv)
			if err != nil {
				return resp, err
			}

			if checkErr := check(resp); checkErr != nil {
				return backend.Response{}, checkErr
			}

			return resp, nil
		})
	}
}
