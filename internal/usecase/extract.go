package usecase

import (
	"context"
	"encoding/json"
	"math"

	"intake-agent/internal/domain"
	"intake-agent/internal/schema"
)

const extractMaxTokens = 2000

// ExtractedRequirements is one extraction pass over a transcript.
type ExtractedRequirements struct {
	Data            map[string]any
	MissingRequired []string
	ReadinessScore  int
	CompletionReady bool
}

// RequirementsExtractor maps a full conversation transcript onto the field
// schema for a service category. Each call re-extracts from scratch; fact
// accumulation across turns is the oracle's job, operating over the whole
// transcript.
type RequirementsExtractor struct {
	oracle Oracle
}

func NewRequirementsExtractor(oracle Oracle) *RequirementsExtractor {
	return &RequirementsExtractor{oracle: oracle}
}

// Extract asks the oracle to fill every known field, null for anything not
// stated. Malformed oracle output degrades to the zero state (nothing
// extracted, every required field missing); only transport failures return
// an error.
func (e *RequirementsExtractor) Extract(ctx context.Context, serviceType string, messages []domain.Message) (ExtractedRequirements, error) {
	fields := schema.Fields(serviceType)
	required := schema.RequiredFields(serviceType)

	raw, err := e.oracle.Infer(ctx, buildExtractionPrompt(serviceType, fields, messages), extractMaxTokens)
	if err != nil {
		return ExtractedRequirements{}, err
	}
	return parseExtraction(raw, required), nil
}

func parseExtraction(text string, required []schema.Field) ExtractedRequirements {
	obj, ok := extractJSONObject(text)
	if !ok {
		return zeroExtraction(required)
	}
	var parsed struct {
		Extracted map[string]any `json:"extracted"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return zeroExtraction(required)
	}

	data := make(map[string]any, len(parsed.Extracted))
	for key, value := range parsed.Extracted {
		if fieldPresent(value) {
			data[key] = value
		}
	}

	missing := make([]string, 0)
	for _, f := range required {
		if _, ok := data[f.Key]; !ok {
			missing = append(missing, f.Key)
		}
	}

	return ExtractedRequirements{
		Data:            data,
		MissingRequired: missing,
		ReadinessScore:  readinessScore(len(required)-len(missing), len(required)),
		CompletionReady: len(missing) == 0,
	}
}

func zeroExtraction(required []schema.Field) ExtractedRequirements {
	missing := make([]string, 0, len(required))
	for _, f := range required {
		missing = append(missing, f.Key)
	}
	return ExtractedRequirements{
		Data:            map[string]any{},
		MissingRequired: missing,
		ReadinessScore:  0,
		CompletionReady: false,
	}
}

// fieldPresent rejects explicit nulls and empty strings; the oracle is
// instructed to answer null for anything the user never stated.
func fieldPresent(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}

func readinessScore(found, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(found) / float64(total) * 100))
}
