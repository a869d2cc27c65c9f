package identify

import "github.com/clipflow/clipflow-api/pkg/config"

// DefaultAcceptThreshold is the minimum confidence (0-100 scale) at which
// an automatic identification is written to a record.
const DefaultAcceptThreshold = 70

// ManualConfidence is the confidence recorded for human assignments.
const ManualConfidence = 100

// FallbackPolicy fixes the confidence constants used by the deterministic
// matcher. Two named policies exist: the engine applies NoCredentialsPolicy
// when the LLM pathway was never attempted, and ProviderErrorPolicy when
// the pathway was attempted and failed.
type FallbackPolicy struct {
	FullName float64
	Nickname float64
	LastName float64
}

// NoCredentialsPolicy scores fallback matches when no LLM credentials are
// configured.
var NoCredentialsPolicy = FallbackPolicy{FullName: 90, Nickname: 85, LastName: 75}

// ProviderErrorPolicy scores fallback matches reached through the LLM
// error-recovery branch. Full-name and nickname matches score lower here:
// the provider was expected to answer and did not.
var ProviderErrorPolicy = FallbackPolicy{FullName: 70, Nickname: 65, LastName: 75}

// Policies bundles the tunable identification constants.
type Policies struct {
	AcceptThreshold float64
	NoCredentials   FallbackPolicy
	ProviderError   FallbackPolicy
}

// DefaultPolicies returns the built-in constants.
func DefaultPolicies() Policies {
	return Policies{
		AcceptThreshold: DefaultAcceptThreshold,
		NoCredentials:   NoCredentialsPolicy,
		ProviderError:   ProviderErrorPolicy,
	}
}

// PoliciesFromConfig builds Policies from application configuration,
// falling back to the defaults for unset values.
func PoliciesFromConfig(cfg config.IdentifyConfig) Policies {
	p := DefaultPolicies()
	if cfg.AcceptThreshold > 0 {
		p.AcceptThreshold = cfg.AcceptThreshold
	}
	if cfg.NoCredentialsFullName > 0 {
		p.NoCredentials.FullName = cfg.NoCredentialsFullName
	}
	if cfg.NoCredentialsNickname > 0 {
		p.NoCredentials.Nickname = cfg.NoCredentialsNickname
	}
	if cfg.NoCredentialsLastName > 0 {
		p.NoCredentials.LastName = cfg.NoCredentialsLastName
	}
	if cfg.ProviderErrorFullName > 0 {
		p.ProviderError.FullName = cfg.ProviderErrorFullName
	}
	if cfg.ProviderErrorNickname > 0 {
		p.ProviderError.Nickname = cfg.ProviderErrorNickname
	}
	if cfg.ProviderErrorLastName > 0 {
		p.ProviderError.LastName = cfg.ProviderErrorLastName
	}
	return p
}
