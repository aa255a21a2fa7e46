package providers

import "context"

// ChatCompleter is the AI provider used by documentation checks. Each
// check supplies its own prompts and model id; the completer returns
// the model's raw text response.
type ChatCompleter interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}
