package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/event"
)

// SemanticValidator asks the model to confirm a candidate describes a real,
// specific event. It implements event.Validator.
type SemanticValidator struct {
	svc    ChatCompleter
	logger *zap.Logger
}

// NewSemanticValidator builds the validator.
func NewSemanticValidator(svc ChatCompleter, logger *zap.Logger) *SemanticValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticValidator{svc: svc, logger: logger.Named("validate")}
}

// Confirm returns the model's verdict. Service failures return an error so
// the caller can apply its fail-open policy.
func (v *SemanticValidator) Confirm(ctx context.Context, cand event.Candidate, eventType event.Type) (bool, error) {
	if v.svc == nil {
		return false, fmt.Errorf("validation service not configured")
	}
	prompt := fmt.Sprintf(validationPromptTemplate,
		eventType, cand.Name, orUnknown(cand.StartDate), orUnknown(cand.EndDate),
		orUnknown(cand.Location), snippet(cand.Description, 400))
	raw, err := v.svc.Complete(ctx, extractionSystemPrompt, prompt)
	if err != nil {
		return false, fmt.Errorf("validation completion: %w", err)
	}
	answer := strings.ToUpper(strings.TrimSpace(raw))
	return strings.HasPrefix(answer, "YES"), nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

func snippet(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
