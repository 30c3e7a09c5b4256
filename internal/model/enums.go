package model

// Language for playlist curation, DJ commentary and speech synthesis
type Language string

const (
	LanguageEN Language = "en"
	LanguageES Language = "es"
	LanguageFR Language = "fr"
	LanguageDE Language = "de"
	LanguageJA Language = "ja"
)

var ValidLanguages = []Language{
	LanguageEN, LanguageES, LanguageFR, LanguageDE, LanguageJA,
}

// IsValid reports whether l is a supported language.
func (l Language) IsValid() bool {
	for _, v := range ValidLanguages {
		if l == v {
			return true
		}
	}
	return false
}

// SpeechName returns the language name used in synthesis prompts.
func (l Language) SpeechName() string {
	switch l {
	case LanguageES:
		return "Spanish"
	case LanguageFR:
		return "French"
	case LanguageDE:
		return "German"
	case LanguageJA:
		return "Japanese"
	default:
		return "English"
	}
}

// Queue item types
type QueueItemType string

const (
	QueueItemSong    QueueItemType = "song"
	QueueItemSegment QueueItemType = "segment"
)
