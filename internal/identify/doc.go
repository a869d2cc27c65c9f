// Package identify matches video transcripts against a team roster. The
// primary pathway asks an LLM to pick the student the clip is about; when
// credentials are missing or the provider errors, a deterministic substring
// matcher takes over with policy-specific confidence constants. Results are
// threshold-gated before being accepted onto a video record.
package identify
