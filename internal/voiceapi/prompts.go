package voiceapi

import "strings"

const (
	englishSystemPrompt = "You are SmartSpeak, a technical voice assistant expert in programming, architecture, cloud, and cybersecurity."
	hebrewSystemPrompt  = "אתה SmartSpeak, עוזר קולי מומחה בתכנות, ארכיטקטורה, ענן ואבטחת מידע."
)

// SystemPrompt picks the assistant persona for language. override replaces the
// English prompt only.
func SystemPrompt(language string, override string) string {
	if isHebrew(language) {
		return hebrewSystemPrompt
	}
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override)
	}
	return englishSystemPrompt
}

func isHebrew(language string) bool {
	tag := strings.ToLower(strings.TrimSpace(language))
	return tag == "he" || strings.HasPrefix(tag, "he-") || tag == "iw"
}
