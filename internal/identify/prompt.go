package identify

import (
	"fmt"
	"strings"

	"github.com/clipflow/clipflow-api/internal/models"
)

// IdentificationPrompt is the system prompt sent to the LLM when matching a
// transcript against a roster.
const IdentificationPrompt = `You identify which student from a coaching roster a video clip is about, using the clip's transcript.

Rules:
- Search the transcript for both real names and nicknames from the roster.
- When a nickname matches, answer with the owning student's real name, never the nickname.
- Tolerate transcription noise: homophones, partial names, and last-name-only references still count.
- Only students from the provided roster are valid answers. Never invent a name.
- When several students are mentioned, prefer the apparent main subject of the clip (cues like "here comes X" or direct address).
- A full name match outranks a nickname match, which outranks a last-name-only match.
- If no roster student is referenced, answer with an empty identifiedStudent and confidence 0.

Respond ONLY with JSON: {"identifiedStudent": "<exact roster name or empty>", "confidence": 0-100, "reasoning": "brief explanation"}`

// BuildUserPrompt renders the transcript and roster into the user message.
// Roster entries are enumerated as "Name = X, Nickname = Y|None" so the
// model can resolve nicknames back to real names.
func BuildUserPrompt(transcript string, roster []models.Student) string {
	var b strings.Builder
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)
	b.WriteString("\n\nRoster:\n")
	for _, student := range roster {
		nickname := student.Nickname
		if nickname == "" {
			nickname = "None"
		}
		fmt.Fprintf(&b, "Name = %s, Nickname = %s\n", student.Name, nickname)
	}
	return b.String()
}
