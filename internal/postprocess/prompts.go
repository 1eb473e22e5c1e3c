package postprocess

import "fmt"

// Summary style constants.
const (
	StyleShort    = "short"
	StyleDetailed = "detailed"
)

// SummaryStyle selects how condensed a summary is. Zero value is invalid;
// use ParseSummaryStyle or the pre-parsed constants.
type SummaryStyle struct {
	style string
}

// Pre-parsed styles for use in code.
var (
	ShortStyle    = SummaryStyle{style: StyleShort}
	DetailedStyle = SummaryStyle{style: StyleDetailed}
)

// ParseSummaryStyle validates a style string. Empty means detailed.
func ParseSummaryStyle(s string) (SummaryStyle, error) {
	switch s {
	case "":
		return DetailedStyle, nil
	case StyleShort:
		return ShortStyle, nil
	case StyleDetailed:
		return DetailedStyle, nil
	default:
		return SummaryStyle{}, fmt.Errorf("%q: %w", s, ErrUnknownStyle)
	}
}

// String returns the style name, or empty for the zero value.
func (s SummaryStyle) String() string {
	return s.style
}

// prompt returns the system prompt for this style. The zero value falls
// back to the detailed prompt.
func (s SummaryStyle) prompt() string {
	if s.style == StyleShort {
		return shortSummaryPrompt
	}
	return detailedSummaryPrompt
}

// Prompts instructing the LLM how to post-process raw transcripts.
// Written in English; for other output languages a "Respond in {language}"
// instruction is prepended.

const shortSummaryPrompt = `You summarize a raw transcript.

Rules:
- Produce a very concise summary of the main content, 2-3 sentences
- Follow with a "Tags:" line listing 3-6 relevant keywords
- Follow with a "Topics:" line listing the main subject areas
- Do not alter meaning, do not invent anything
- Ignore filler words and transcription noise`

const detailedSummaryPrompt = `You summarize a raw transcript.

Rules:
- Produce a detailed summary covering the main points, conclusions, and
  subjects discussed, one paragraph per theme
- Follow with a "Tags:" line listing 3-6 relevant keywords
- Follow with a "Topics:" line listing the main subject areas
- Do not alter meaning, do not invent anything
- Ignore filler words and transcription noise`

const translatePromptFmt = `You translate a raw transcript into %s.

Rules:
- Translate the complete text, natural and fluent, not literal
- Keep the structure of the original: paragraphs, timestamps, and speaker
  changes stay where they are
- Do not summarize, do not omit anything
- Do not alter meaning, do not invent anything`

// languageNames maps ISO 639-1 codes to display names for the translation
// prompt. Unknown codes pass through unchanged; the model resolves them.
var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"ca": "Catalan",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
}

// translatePrompt builds the system prompt for a target language code.
func translatePrompt(targetLang string) string {
	name, ok := languageNames[targetLang]
	if !ok {
		name = targetLang
	}
	return fmt.Sprintf(translatePromptFmt, name)
}
