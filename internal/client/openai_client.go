package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/cobardes/radia-fm-sub000/internal/config"
	"github.com/cobardes/radia-fm-sub000/internal/model"
)

// Completer is the generative text model consumed by the pipeline. Both calls
// are opaque, possibly slow, possibly failing network services.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	CompleteStructured(ctx context.Context, system, user, schemaName string, schema json.RawMessage, out interface{}) error
}

// Synthesizer produces playable speech audio for a talk segment. The
// segment's language selects the voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, language model.Language) (io.ReadCloser, error)
}

// OpenAIClient handles communication with an OpenAI-compatible API. A larger
// model drafts free-form text; a cheaper one coerces it into strict schemas.
type OpenAIClient struct {
	client      *openai.Client
	draftModel  string
	coerceModel string
	ttsModel    string
	ttsVoice    string
	ttsVoices   map[string]string
	configured  bool
}

// NewOpenAIClient creates a new client for chat completion and speech synthesis.
func NewOpenAIClient(cfg *config.OpenAIConfig, tts *config.TTSConfig) *OpenAIClient {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "dummy-key"
	}
	oc := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(oc),
		draftModel:  cfg.DraftModel,
		coerceModel: cfg.CoerceModel,
		ttsModel:    tts.Model,
		ttsVoice:    tts.Voice,
		ttsVoices:   tts.Voices,
		configured:  cfg.APIKey != "",
	}
}

// Complete sends a free-form chat completion to the drafting model. The
// drafting model is deliberately unconstrained: forcing a rigid output schema
// on it measurably degrades its reasoning, so structure is recovered in a
// second pass by CompleteStructured.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.draftModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.8,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteStructured asks the coercion model to reshape free text into the
// given JSON schema and unmarshals the result into out.
func (c *OpenAIClient) CompleteStructured(ctx context.Context, system, user, schemaName string, schema json.RawMessage, out interface{}) error {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.coerceModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("structured completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("no choices in response")
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("failed to unmarshal structured response: %w", err)
	}
	return nil
}

// Synthesize converts talk segment text to speech and returns the audio
// stream (mp3). The caller owns closing the reader.
func (c *OpenAIClient) Synthesize(ctx context.Context, text string, language model.Language) (io.ReadCloser, error) {
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(c.ttsModel),
		Input: text,
		Voice: openai.SpeechVoice(c.voiceFor(language)),
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	return resp, nil
}

// voiceFor picks the configured voice for a station language, falling back
// to the default voice.
func (c *OpenAIClient) voiceFor(language model.Language) string {
	if v, ok := c.ttsVoices[string(language)]; ok && v != "" {
		return v
	}
	return c.ttsVoice
}

// IsConfigured returns true if the client has valid configuration
func (c *OpenAIClient) IsConfigured() bool {
	return c.configured
}
