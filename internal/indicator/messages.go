package indicator

import (
	"strings"

	"github.com/rbright/smartspeak/internal/session"
)

type locale string

const (
	localeEnglish locale = "en"
	localeHebrew  locale = "he"
)

type messages struct {
	recording  string
	processing string
	notices    map[string]string
}

// translate maps a session notice to the active locale, passing unknown text through.
func (m messages) translate(text string) string {
	if text == "" {
		text = session.NoticeProcessing
	}
	if localized, ok := m.notices[text]; ok {
		return localized
	}
	return text
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "he") || strings.HasPrefix(raw, "iw") {
		return localeHebrew
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeHebrew:
		return messages{
			recording:  "מקליט…",
			processing: "מעבד…",
			notices: map[string]string{
				session.NoticeMicrophone: "הגישה למיקרופון נכשלה",
				session.NoticeProcessing: "עיבוד הקול נכשל",
				session.NoticePlayback:   "השמעת התשובה נכשלה",
			},
		}
	default:
		return messages{
			recording:  "Listening…",
			processing: "Thinking…",
		}
	}
}
