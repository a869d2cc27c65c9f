package models

// IdentificationPathway names which strategy produced a result.
type IdentificationPathway string

const (
	PathwayLLM      IdentificationPathway = "llm"
	PathwayFallback IdentificationPathway = "fallback"
	PathwayManual   IdentificationPathway = "manual"
)

// IdentificationResult is the outcome of matching a transcript against a
// roster. IdentifiedStudent is either empty ("no match") or exactly equal
// to a roster student's name. Confidence uses a 0-100 scale.
type IdentificationResult struct {
	IdentifiedStudent string                `json:"identifiedStudent"`
	Confidence        float64               `json:"confidence"`
	Reasoning         string                `json:"reasoning,omitempty"`
	Pathway           IdentificationPathway `json:"pathway,omitempty"`
}

// Matched reports whether the result names a student.
func (r IdentificationResult) Matched() bool {
	return r.IdentifiedStudent != ""
}
