package prompty

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// InputName is the template variable that receives the caption list.
const InputName = "question"

type Assistant struct {
	prompt       *Prompty
	completer    Completer
	defaultModel string
}

func NewAssistant(prompt *Prompty, completer Completer, defaultModel string) *Assistant {
	return &Assistant{
		prompt:       prompt,
		completer:    completer,
		defaultModel: defaultModel,
	}
}

func (a *Assistant) model() string {
	if d := a.prompt.Deployment(); d != "" {
		return d
	}
	return a.defaultModel
}

func (a *Assistant) Describe(ctx context.Context, captions []string) (string, error) {
	messages, err := a.prompt.Render(map[string]any{InputName: captions})
	if err != nil {
		return "", err
	}

	description, err := a.completer.Complete(ctx, a.model(), messages, a.prompt.Model.Parameters)
	if err != nil {
		return "", fmt.Errorf("prompt %q failed: %w", a.prompt.Name, err)
	}

	return description, nil
}

type tracingCompleter struct {
	wrapped Completer
	log     *zap.Logger
}

// NewTracingCompleter logs every prompt execution with its inputs, output and
// duration.
func NewTracingCompleter(wrapped Completer, log *zap.Logger) Completer {
	return &tracingCompleter{
		wrapped: wrapped,
		log:     log,
	}
}

func (t *tracingCompleter) Complete(ctx context.Context, model string, messages []Message, params Parameters) (string, error) {
	fields := make([]zap.Field, 0, len(messages)+1)
	fields = append(fields, zap.String("model", model))
	for i, m := range messages {
		fields = append(fields, zap.String(fmt.Sprintf("message_%d_%s", i, m.Role), m.Content))
	}
	t.log.Debug("Executing prompt", fields...)

	start := time.Now()
	response, err := t.wrapped.Complete(ctx, model, messages, params)
	if err != nil {
		t.log.Error("Prompt execution failed",
			zap.String("model", model),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return "", err
	}

	t.log.Info("Prompt executed",
		zap.String("model", model),
		zap.Int("response_length", len(response)),
		zap.Duration("took", time.Since(start)))
	t.log.Debug("Prompt response", zap.String("response", response))

	return response, nil
}
