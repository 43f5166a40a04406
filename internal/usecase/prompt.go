package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"intake-agent/internal/domain"
	"intake-agent/internal/schema"
)

// recentHistoryWindow bounds how many transcript lines are replayed to the
// oracle for classification and question generation.
const recentHistoryWindow = 6

func transcriptLines(messages []domain.Message) []string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return lines
}

func recentLines(lines []string) []string {
	if len(lines) <= recentHistoryWindow {
		return lines
	}
	return lines[len(lines)-recentHistoryWindow:]
}

func buildClassificationPrompt(userMessage string, history []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Classify the user's intent for routing to the appropriate backend service.\n\nUSER MESSAGE: %q\n\n", userMessage)

	if len(history) > 0 {
		fmt.Fprintf(&b, "CONVERSATION HISTORY:\n%s\n\n", strings.Join(recentLines(history), "\n"))
	}

	b.WriteString(strings.Join([]string{
		"AVAILABLE SERVICES:",
		"1. web_development - Website building, app development, technical implementation, project estimation",
		"2. analytics - Business analytics, revenue analysis, financial forecasting, data insights",
		"3. marketing - Content creation, SEO, blog posts, social media, copywriting",
		"4. website_analytics - Website traffic analysis, bounce rate, conversion optimization, user behavior",
		"",
		"Respond ONLY with JSON:",
		`{`,
		`  "primaryIntent": "service_name",`,
		`  "confidence": 0-100,`,
		`  "suggestedBackend": "/api/service-name",`,
		`  "reasoning": "brief explanation"`,
		`}`,
	}, "\n"))
	return b.String()
}

func buildExtractionPrompt(serviceType string, fields []schema.Field, messages []domain.Message) string {
	var transcript strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&transcript, "%s: %s\n", strings.ToUpper(string(m.Role)), m.Content)
	}

	var fieldList strings.Builder
	for _, f := range fields {
		requiredness := "optional"
		if f.Required {
			requiredness = "REQUIRED"
		}
		fmt.Fprintf(&fieldList, "- %s (%s): %s\n", f.Key, requiredness, f.Description)
	}

	return fmt.Sprintf(`Extract structured requirements from this conversation for a %s project.

CONVERSATION:
%s
FIELDS TO EXTRACT:
%s
INSTRUCTIONS:
1. Extract all mentioned information into structured JSON
2. If information is not explicitly stated, use null
3. Be specific - extract exact details mentioned, not assumptions
4. For arrays, extract all items mentioned
5. For budget, extract as {min: number, max: number} or {fixed: number}

Respond ONLY with valid JSON in this format:
{
  "extracted": {
    "fieldName": "value"
  },
  "confidence": 0-100
}`, serviceType, transcript.String(), fieldList.String())
}

func buildQuestionPrompt(serviceType string, messages []domain.Message, extracted map[string]any, missing []string) string {
	known, err := json.MarshalIndent(extracted, "", "  ")
	if err != nil {
		known = []byte("{}")
	}

	byKey := make(map[string]schema.Field)
	for _, f := range schema.RequiredFields(serviceType) {
		byKey[f.Key] = f
	}
	var missingList strings.Builder
	for _, key := range missing {
		fmt.Fprintf(&missingList, "- %s: %s\n", key, byKey[key].Description)
	}

	conversation := strings.Join(recentLines(transcriptLines(messages)), "\n")

	return fmt.Sprintf(`You are gathering requirements for a %s project.

WHAT WE KNOW:
%s

STILL MISSING (focus on these):
%s
RECENT CONVERSATION:
%s

YOUR TASK:
Ask ONE natural follow-up question to gather the next most important missing field.
Be conversational and friendly. Don't ask for everything at once.

Respond with just your question:`, serviceType, known, missingList.String(), conversation)
}

func buildSummaryPrompt(serviceType string, requirements map[string]any) string {
	captured, err := json.MarshalIndent(requirements, "", "  ")
	if err != nil {
		captured = []byte("{}")
	}

	return fmt.Sprintf(`Generate a friendly confirmation summary for these %s requirements:

%s

Create a concise, bullet-point summary that:
1. Starts with "Let me confirm what I've gathered:"
2. Lists 5-8 key points
3. Ends with "Is this accurate?"

Keep it natural and conversational:`, serviceType, captured)
}

func buildConfirmationPrompt(userResponse string) string {
	return fmt.Sprintf(`Analyze this user response to a confirmation question:

USER: %q

Categorize their response:

1. **PURE AGREEMENT**: They agree with everything, no changes
   - Examples: "yes", "correct", "that's right", "looks good", "perfect"

2. **NEEDS DISCUSSION**: They need to talk to someone else before deciding
   - Examples: "need to discuss with partner/boss/team", "let me check with my team"

3. **ADDING REQUIREMENTS**: They agree BUT want to add something NEW
   - Examples: "yes, and also...", "can we add...", "I also need...", "plus..."
   - This is NOT a disagreement, it's expanding scope

4. **CORRECTIONS**: They disagree with what was captured, want to change something
   - Examples: "no, the budget is...", "actually it's...", "you got X wrong"

5. **TRUE DISAGREEMENT**: They fundamentally disagree or it's completely wrong
   - Examples: "no that's all wrong", "I never said that", "not what I meant"

Respond ONLY with JSON:
{
  "agreed": boolean (true for pure agreement),
  "needsDiscussion": boolean,
  "hasAdditions": boolean (true if adding new requirements),
  "additionDetails": "what they want to add, or empty string",
  "clarificationNeeded": "what needs correction, or empty string"
}`, userResponse)
}

func buildEstimatePrompt(serviceType string, requirements map[string]any) string {
	captured, err := json.MarshalIndent(requirements, "", "  ")
	if err != nil {
		captured = []byte("{}")
	}

	return fmt.Sprintf(`You are a professional project estimator for an AI solutions company.

SERVICE TYPE: %s

PROJECT REQUIREMENTS:
%s

YOUR TASK:
Generate a detailed, professional project estimate with realistic pricing.

PRICING GUIDELINES:
- Web Development: $3,000-15,000 (based on complexity)
- Marketing/SEO: $500-5,000 per month (ongoing) or $2,000-10,000 (project)
- Business Analytics: $1,500-8,000 (one-time) or $200-2,000/month (recurring)
- Website Analytics: $1,000-5,000 (optimization project)

Consider:
- Scope and complexity
- Timeline (rush = higher cost)
- Required integrations
- Content creation needs
- Ongoing vs one-time

Respond with ONLY valid JSON:
{
  "summary": "Brief project overview (2-3 sentences)",
  "basePrice": number (starting price),
  "additionalCosts": [
    {"item": "description", "cost": number}
  ],
  "totalMin": number (minimum total),
  "totalMax": number (maximum total),
  "timeline": "estimated timeline",
  "nextSteps": ["step 1", "step 2", "step 3"]
}`, serviceType, captured)
}
