package identify

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/clipflow/clipflow-api/internal/models"
	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
)

// Completer is the LLM boundary: one JSON chat completion per attempt.
type Completer interface {
	Configured() bool
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Engine resolves which roster student a transcript refers to.
type Engine struct {
	llm      Completer
	policies Policies
	logger   *zap.Logger
}

// NewEngine constructs an identification engine. A nil completer disables
// the LLM pathway, leaving only the deterministic fallback.
func NewEngine(llm Completer, policies Policies, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policies.AcceptThreshold <= 0 {
		policies = DefaultPolicies()
	}
	return &Engine{llm: llm, policies: policies, logger: logger}
}

// Policies exposes the engine's active constants.
func (e *Engine) Policies() Policies {
	return e.policies
}

// Identify matches the transcript against the roster. The returned result
// is raw: callers gate it through Accept before persisting. Every failure
// mode short of an empty roster resolves to a well-formed zero-confidence
// result rather than an error.
func (e *Engine) Identify(ctx context.Context, transcript string, roster []models.Student) (models.IdentificationResult, error) {
	if len(roster) == 0 {
		return models.IdentificationResult{}, appErrors.Clone(appErrors.ErrEmptyRoster, "cannot identify against an empty roster")
	}
	if strings.TrimSpace(transcript) == "" {
		return models.IdentificationResult{}, nil
	}

	if e.llm == nil || !e.llm.Configured() {
		e.logger.Debug("llm credentials absent, using fallback matcher")
		return Fallback(transcript, roster, e.policies.NoCredentials), nil
	}

	raw, err := e.llm.CompleteJSON(ctx, IdentificationPrompt, BuildUserPrompt(transcript, roster))
	if err != nil {
		e.logger.Warn("llm identification failed, degrading to fallback", zap.Error(err))
		return Fallback(transcript, roster, e.policies.ProviderError), nil
	}

	result, ok := e.parseResponse(raw, roster)
	if !ok {
		// Malformed output is "no confident match", not a hard failure.
		e.logger.Warn("llm returned no usable identification", zap.String("response", truncate(raw, 256)))
		return models.IdentificationResult{Pathway: models.PathwayLLM}, nil
	}
	return result, nil
}

// Accept applies the confidence threshold: below it, the identification is
// recorded as attempted but yields an empty student and zero confidence.
func (e *Engine) Accept(result models.IdentificationResult) models.IdentificationResult {
	if !result.Matched() || result.Confidence < e.policies.AcceptThreshold {
		return models.IdentificationResult{Pathway: result.Pathway}
	}
	return result
}

type llmAnswer struct {
	IdentifiedStudent string  `json:"identifiedStudent"`
	Confidence        float64 `json:"confidence"`
	Reasoning         string  `json:"reasoning"`
}

// parseResponse extracts the first JSON object from the model output and
// normalises it: confidence values on the 0-1 secondary scale are converted
// to the canonical 0-100 scale, and the identified name must resolve to an
// exact roster name (a nickname answer resolves to its owner).
func (e *Engine) parseResponse(raw string, roster []models.Student) (models.IdentificationResult, bool) {
	extracted := extractJSONObject(raw)
	if extracted == "" {
		return models.IdentificationResult{}, false
	}

	var answer llmAnswer
	if err := json.Unmarshal([]byte(extracted), &answer); err != nil {
		return models.IdentificationResult{}, false
	}

	confidence := answer.Confidence
	if confidence > 0 && confidence <= 1 {
		confidence *= 100
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	name := resolveRosterName(answer.IdentifiedStudent, roster)
	if name == "" {
		return models.IdentificationResult{Pathway: models.PathwayLLM, Reasoning: answer.Reasoning}, true
	}

	return models.IdentificationResult{
		IdentifiedStudent: name,
		Confidence:        confidence,
		Reasoning:         answer.Reasoning,
		Pathway:           models.PathwayLLM,
	}, true
}

// resolveRosterName maps a model answer onto an exact roster name. Answers
// that match a nickname resolve to the owning student; anything else that
// is not a roster name is discarded.
func resolveRosterName(candidate string, roster []models.Student) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return ""
	}
	lowered := strings.ToLower(candidate)
	for _, student := range roster {
		if strings.ToLower(student.Name) == lowered {
			return student.Name
		}
	}
	for _, student := range roster {
		if student.Nickname != "" && strings.ToLower(student.Nickname) == lowered {
			return student.Name
		}
	}
	return ""
}

// DetectDuplicate reports whether more than one active roster student
// shares the given name. Ambiguity is flagged, not resolved.
func DetectDuplicate(name string, roster []models.Student) bool {
	if name == "" {
		return false
	}
	count := 0
	lowered := strings.ToLower(name)
	for _, student := range roster {
		if !student.Active {
			continue
		}
		if strings.ToLower(student.Name) == lowered {
			count++
			if count > 1 {
				return true
			}
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
