package ollama

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/docsort/internal/core/domain"
)

const maxSnippetRunes = 4000

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxSnippetRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxSnippetRunes])
}

func buildSummaryPrompt(text, fileName string) string {
	return fmt.Sprintf(`You summarize documents for a document management system.
Write one or two plain sentences describing what the document is and its key facts.
No markdown, no preamble.

File name: %s

Document:
%s`, fileName, snippet(text))
}

func buildTagsPrompt(text, fileName string) string {
	return fmt.Sprintf(`You categorize documents for a document management system.
Return a strict JSON object: {"tags": ["tag", ...]} with 1 to %d short lowercase tags
(use hyphens instead of spaces, e.g. "real-estate"). No markdown, no extra keys.

File name: %s

Document:
%s`, maxTags, fileName, snippet(text))
}

func buildCommandPrompt(command string) string {
	actions := make([]string, 0, 5)
	for _, a := range []domain.CommandAction{
		domain.ActionMoveFiles,
		domain.ActionOrganize,
		domain.ActionSearch,
		domain.ActionCreateFolder,
		domain.ActionRename,
	} {
		actions = append(actions, string(a))
	}

	return fmt.Sprintf(`You translate user requests into file management actions.
Return a strict JSON object with keys:
action (one of: %s), description (string, what would be done), parameters (object).
No markdown, no extra keys.

Request:
%s`, strings.Join(actions, ", "), command)
}

func buildFolderPlanPrompt(profile domain.OnboardingProfile) string {
	return fmt.Sprintf(`You design an initial folder structure for a new user of a document management system.
Return a strict JSON object: {"folders": [{"key": "...", "name": "...", "parentKey": "..."}]}.
key is a unique short identifier, parentKey is empty for top-level folders and otherwise must be the key
of a folder listed earlier. At most %d folders, at most 3 levels deep. Folder names must not contain "/".
No markdown, no extra keys.

Industry: %s
Team size: %s
About the team: %s`, maxPlanFolders, profile.Industry, valueOr(profile.TeamSize, "unknown"), valueOr(profile.Description, "n/a"))
}

const visionPrompt = `Transcribe all readable text in this image exactly as written, preserving line breaks.
Return only the text. If there is no text, return an empty response.`

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
