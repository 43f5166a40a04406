package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"intake-agent/internal/domain"
)

const estimateMaxTokens = 2000

// EstimateLineItem is one itemized cost beyond the base price.
type EstimateLineItem struct {
	Item string  `json:"item"`
	Cost float64 `json:"cost"`
}

// Estimate is the downstream deliverable produced from a completed
// conversation's requirements.
type Estimate struct {
	Summary         string             `json:"summary"`
	BasePrice       float64            `json:"basePrice"`
	AdditionalCosts []EstimateLineItem `json:"additionalCosts"`
	TotalMin        float64            `json:"totalMin"`
	TotalMax        float64            `json:"totalMax"`
	Timeline        string             `json:"timeline"`
	NextSteps       []string           `json:"nextSteps"`
}

// EstimateService turns a complete session's requirements into a project
// estimate. Pricing judgment is entirely the oracle's; this service only
// shapes the request and parses the result.
type EstimateService struct {
	store  SessionReader
	oracle Oracle
}

// SessionReader is the read-only session access the estimate service needs.
type SessionReader interface {
	Get(id string) (domain.Session, bool)
}

func NewEstimateService(store SessionReader, oracle Oracle) (*EstimateService, error) {
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if oracle == nil {
		return nil, errors.New("usecase: oracle must not be nil")
	}
	return &EstimateService{store: store, oracle: oracle}, nil
}

// Generate produces an estimate for a session that has reached the
// complete phase. Malformed oracle output degrades to a conservative
// default estimate rather than failing the request.
func (s *EstimateService) Generate(ctx context.Context, sessionID string) (Estimate, error) {
	sess, ok := s.store.Get(strings.TrimSpace(sessionID))
	if !ok {
		return Estimate{}, newError(ErrorNotFound, "session_not_found", nil)
	}
	if sess.Phase != domain.PhaseComplete {
		return Estimate{}, newError(ErrorConflict, "estimate_not_ready", nil)
	}

	serviceType := sess.ProblemType
	if serviceType == "" {
		serviceType = "general"
	}
	raw, err := s.oracle.Infer(ctx, buildEstimatePrompt(serviceType, sess.Requirements), estimateMaxTokens)
	if err != nil {
		return Estimate{}, wrapOracleErr("estimate", err)
	}
	return parseEstimate(raw), nil
}

func parseEstimate(text string) Estimate {
	obj, ok := extractJSONObject(text)
	if !ok {
		return fallbackEstimate()
	}
	var parsed Estimate
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return fallbackEstimate()
	}

	if parsed.Summary == "" {
		parsed.Summary = "Project estimate generated"
	}
	if parsed.Timeline == "" {
		parsed.Timeline = "TBD"
	}
	if parsed.AdditionalCosts == nil {
		parsed.AdditionalCosts = []EstimateLineItem{}
	}
	if parsed.NextSteps == nil {
		parsed.NextSteps = []string{}
	}
	return parsed
}

func fallbackEstimate() Estimate {
	return Estimate{
		Summary:         "Custom project estimate based on your requirements",
		BasePrice:       2500,
		AdditionalCosts: []EstimateLineItem{},
		TotalMin:        2500,
		TotalMax:        5000,
		Timeline:        "4-8 weeks",
		NextSteps: []string{
			"Review this estimate",
			"Schedule a consultation call",
			"Finalize project scope",
		},
	}
}
