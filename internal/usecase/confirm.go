package usecase

import (
	"context"
	"encoding/json"
)

const confirmMaxTokens = 300

// ConfirmationResult captures the overlapping categories a reply to a
// confirmation summary can land in. Agreement and additions co-occur
// ("yes, and also..."), so the axes stay independent booleans; the
// orchestrator applies the precedence order.
type ConfirmationResult struct {
	Agreed              bool   `json:"agreed"`
	NeedsDiscussion     bool   `json:"needsDiscussion"`
	HasAdditions        bool   `json:"hasAdditions"`
	AdditionDetails     string `json:"additionDetails"`
	ClarificationNeeded string `json:"clarificationNeeded"`
}

// ConfirmationAnalyzer classifies the user's free-form reply to a
// confirmation summary.
type ConfirmationAnalyzer struct {
	oracle Oracle
}

func NewConfirmationAnalyzer(oracle Oracle) *ConfirmationAnalyzer {
	return &ConfirmationAnalyzer{oracle: oracle}
}

// Analyze classifies the reply. Malformed oracle output degrades to an
// unclassifiable correction carrying the raw user text, which routes the
// conversation toward clarification rather than completing or escalating;
// only transport failures return an error.
func (a *ConfirmationAnalyzer) Analyze(ctx context.Context, userResponse string) (ConfirmationResult, error) {
	raw, err := a.oracle.Infer(ctx, buildConfirmationPrompt(userResponse), confirmMaxTokens)
	if err != nil {
		return ConfirmationResult{}, err
	}
	return parseConfirmation(raw, userResponse), nil
}

func parseConfirmation(text, userResponse string) ConfirmationResult {
	fallback := ConfirmationResult{ClarificationNeeded: userResponse}

	obj, ok := extractJSONObject(text)
	if !ok {
		return fallback
	}
	var parsed ConfirmationResult
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return fallback
	}
	return parsed
}
