package identify

import (
	"strings"

	"github.com/clipflow/clipflow-api/internal/models"
)

// Fallback applies the deterministic matching rules in strict priority
// order, stopping at the first hit: full-name substring, then nickname,
// then last name (names with at least two parts). Within each rule the
// first student in roster iteration order wins; there is no scoring across
// candidates.
func Fallback(transcript string, roster []models.Student, policy FallbackPolicy) models.IdentificationResult {
	haystack := strings.ToLower(transcript)

	for _, student := range roster {
		if student.Name == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(student.Name)) {
			return models.IdentificationResult{
				IdentifiedStudent: student.Name,
				Confidence:        policy.FullName,
				Pathway:           models.PathwayFallback,
			}
		}
	}

	for _, student := range roster {
		if student.Nickname == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(student.Nickname)) {
			return models.IdentificationResult{
				IdentifiedStudent: student.Name,
				Confidence:        policy.Nickname,
				Pathway:           models.PathwayFallback,
			}
		}
	}

	for _, student := range roster {
		lastName := student.LastName()
		if lastName == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(lastName)) {
			return models.IdentificationResult{
				IdentifiedStudent: student.Name,
				Confidence:        policy.LastName,
				Pathway:           models.PathwayFallback,
			}
		}
	}

	return models.IdentificationResult{Pathway: models.PathwayFallback}
}
