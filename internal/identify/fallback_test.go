package identify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clipflow/clipflow-api/internal/models"
)

func TestFallbackNicknameResolvesToRealName(t *testing.T) {
	roster := []models.Student{{Name: "Bob Myers", Nickname: "Bobbie", Active: true}}

	result := Fallback("and here comes Bobbie down the hill", roster, NoCredentialsPolicy)

	assert.Equal(t, "Bob Myers", result.IdentifiedStudent)
	assert.Equal(t, float64(85), result.Confidence)
	assert.Equal(t, models.PathwayFallback, result.Pathway)
}

func TestFallbackLastNameRule(t *testing.T) {
	roster := []models.Student{{Name: "Jane Smith", Active: true}}

	result := Fallback("nice run by Smith today", roster, NoCredentialsPolicy)

	assert.Equal(t, "Jane Smith", result.IdentifiedStudent)
	assert.Equal(t, float64(75), result.Confidence)
}

func TestFallbackFullNameOutranksNickname(t *testing.T) {
	roster := []models.Student{
		{Name: "Alex Ford", Nickname: "Rocket", Active: true},
		{Name: "Maya Chen", Nickname: "May", Active: true},
	}

	// "Maya Chen" is a full-name hit and must win over Alex's nickname,
	// even though Alex precedes Maya in roster order.
	result := Fallback("Rocket watches while Maya Chen takes the gate", roster, NoCredentialsPolicy)

	assert.Equal(t, "Maya Chen", result.IdentifiedStudent)
	assert.Equal(t, float64(90), result.Confidence)
}

func TestFallbackFirstRosterStudentWinsWithinRule(t *testing.T) {
	roster := []models.Student{
		{Name: "Ada North", Active: true},
		{Name: "Ben South", Active: true},
	}

	result := Fallback("Ada North then Ben South", roster, NoCredentialsPolicy)

	assert.Equal(t, "Ada North", result.IdentifiedStudent)
}

func TestFallbackCaseInsensitive(t *testing.T) {
	roster := []models.Student{{Name: "Jane Smith", Active: true}}

	result := Fallback("great edge control from JANE SMITH", roster, NoCredentialsPolicy)

	assert.Equal(t, "Jane Smith", result.IdentifiedStudent)
	assert.Equal(t, float64(90), result.Confidence)
}

func TestFallbackNoMatch(t *testing.T) {
	roster := []models.Student{{Name: "Jane Smith", Nickname: "Janie", Active: true}}

	result := Fallback("fresh powder all morning", roster, NoCredentialsPolicy)

	assert.Empty(t, result.IdentifiedStudent)
	assert.Zero(t, result.Confidence)
}

func TestFallbackProviderErrorPolicyConstants(t *testing.T) {
	roster := []models.Student{{Name: "Bob Myers", Nickname: "Bobbie", Active: true}}

	fullName := Fallback("Bob Myers at the start", roster, ProviderErrorPolicy)
	assert.Equal(t, float64(70), fullName.Confidence)

	nickname := Fallback("go Bobbie go", roster, ProviderErrorPolicy)
	assert.Equal(t, float64(65), nickname.Confidence)

	lastName := Fallback("Myers on the final jump", roster, ProviderErrorPolicy)
	assert.Equal(t, float64(75), lastName.Confidence)
}

func TestFallbackSingleWordNameHasNoLastName(t *testing.T) {
	roster := []models.Student{{Name: "Cher", Active: true}}

	result := Fallback("cheering from the lodge", roster, NoCredentialsPolicy)

	// "Cher" appears inside "cheering" only via the full-name rule; a
	// single-word name never triggers the last-name rule.
	assert.Equal(t, "Cher", result.IdentifiedStudent)
	assert.Equal(t, float64(90), result.Confidence)
}
