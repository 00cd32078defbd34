package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/smartspeak/internal/session"
)

func TestResolveLocale(t *testing.T) {
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("fr_FR.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale(""))
	require.Equal(t, localeHebrew, resolveLocale("he_IL.UTF-8"))
	require.Equal(t, localeHebrew, resolveLocale("iw_IL"))
}

func TestIndicatorMessagesEnglish(t *testing.T) {
	msg := indicatorMessages(localeEnglish)
	require.Equal(t, "Listening…", msg.recording)
	require.Equal(t, "Thinking…", msg.processing)
	require.Equal(t, session.NoticeMicrophone, msg.translate(session.NoticeMicrophone))
	require.Equal(t, session.NoticeProcessing, msg.translate(""))
}

func TestIndicatorMessagesHebrewTranslatesNotices(t *testing.T) {
	msg := indicatorMessages(localeHebrew)
	require.Equal(t, "הגישה למיקרופון נכשלה", msg.translate(session.NoticeMicrophone))
	require.Equal(t, "עיבוד הקול נכשל", msg.translate(session.NoticeProcessing))
	require.Equal(t, "custom", msg.translate("custom"))
}
