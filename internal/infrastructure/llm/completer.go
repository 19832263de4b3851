package llm

import (
	"context"
	"strings"
)

// Request is one model call. Model may be empty to use the provider default.
type Request struct {
	Model       string
	System      string
	Prompt      string
	JSON        bool
	Temperature float32
}

// Completer is implemented by each model provider.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ModelAliases maps model ids shown to users onto provider model names.
type ModelAliases map[string]string

// ParseModelAliases reads "alias=model,alias2=model2". Malformed pairs are skipped.
func ParseModelAliases(raw string) ModelAliases {
	out := make(ModelAliases)
	for _, pair := range strings.Split(raw, ",") {
		alias, model, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		alias, model = strings.TrimSpace(alias), strings.TrimSpace(model)
		if alias == "" || model == "" {
			continue
		}
		out[alias] = model
	}
	return out
}

// Resolve returns the provider model for id; unknown ids pass through.
func (a ModelAliases) Resolve(id string) string {
	id = strings.TrimSpace(id)
	if model, ok := a[id]; ok {
		return model
	}
	return id
}
