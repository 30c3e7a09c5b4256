package client

import (
	"testing"

	"github.com/cobardes/radia-fm-sub000/internal/config"
	"github.com/cobardes/radia-fm-sub000/internal/model"
)

func TestVoiceFor(t *testing.T) {
	c := NewOpenAIClient(&config.OpenAIConfig{}, &config.TTSConfig{
		Model: "tts-1",
		Voice: "alloy",
		Voices: map[string]string{
			"es": "nova",
			"ja": "",
		},
	})

	cases := []struct {
		language model.Language
		want     string
	}{
		{model.LanguageES, "nova"},
		{model.LanguageEN, "alloy"},
		{model.LanguageFR, "alloy"},
		{model.LanguageJA, "alloy"}, // empty override falls back
	}
	for _, tc := range cases {
		if got := c.voiceFor(tc.language); got != tc.want {
			t.Errorf("voiceFor(%s) = %q, want %q", tc.language, got, tc.want)
		}
	}
}
