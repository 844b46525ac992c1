package bits

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/bits/account"
)

// Translator turns a natural-language instruction into zero or more command
// lines using model. An empty result means the model produced nothing
// usable and the next model is tried.
type Translator interface {
	Translate(ctx context.Context, model, input string) (string, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, model, input string) (string, error)

// Translate implements Translator.
func (f TranslatorFunc) Translate(ctx context.Context, model, input string) (string, error) {
	return f(ctx, model, input)
}

// NLResult describes how a natural-language instruction was handled.
type NLResult struct {
	Model    string   `json:"model,omitempty"`
	Output   string   `json:"output,omitempty"`
	Executed []string `json:"executed,omitempty"`
	Skipped  []string `json:"skipped,omitempty"`
}

// ProcessNaturalLanguage tries each configured model in order. A model is
// used only when the rate limiter admits the call. The first non-empty
// translation is recorded against the limits and each of its lines is
// executed as a direct command. Unknown lines are reported to the actor.
// When every model is limited or fails, the actor is told so.
func (e *Engine) ProcessNaturalLanguage(ctx context.Context, actor, input string) (*NLResult, error) {
	actor, err := accountName("actor", actor)
	if err != nil {
		return nil, err
	}
	if e.translator == nil {
		return nil, ErrTranslatorUnavailable
	}

	for _, model := range e.limits.Names() {
		d, err := e.CheckAndAdmit(ctx, actor, model)
		if err != nil {
			return nil, err
		}
		if !d.Allowed {
			continue
		}

		out, err := e.translator.Translate(ctx, model, input)
		if err != nil {
			e.logger.Warn("translator failed", "model", model, "user", actor, "error", err)
			continue
		}
		out = strings.TrimSpace(out)
		if out == "" {
			continue
		}
		if err := e.RecordCall(ctx, actor, model); err != nil {
			return nil, err
		}
		return e.runTranslation(ctx, actor, model, out), nil
	}

	e.notify(ctx, actor, "Sorry, your natural language command could not be processed at this time. All models are currently unavailable or rate-limited.")
	return &NLResult{}, fmt.Errorf("%w: all models unavailable or limited", ErrRateLimited)
}

func (e *Engine) runTranslation(ctx context.Context, actor, model, out string) *NLResult {
	res := &NLResult{Model: model, Output: out}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd := ParseCommand(line)
		if !IsDirect(cmd.Keyword) {
			res.Skipped = append(res.Skipped, line)
			e.notify(ctx, actor, fmt.Sprintf("Skipped unknown command from AI (%s): '%s'.", model, line))
			continue
		}
		e.Execute(ctx, actor, cmd)
		res.Executed = append(res.Executed, line)
	}

	if len(res.Executed) == 0 {
		e.notify(ctx, actor, fmt.Sprintf("AI (%s) processed your request but didn't return a recognized command. AI Output: '%s'", model, out))
	}
	e.logger.Info("natural language command processed",
		"user", account.Normalize(actor),
		"model", model,
		"executed", len(res.Executed),
		"skipped", len(res.Skipped),
	)
	return res
}
