package stt

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"waiter/pkg/audioconv"
)

// OpenAI sends utterances to the hosted transcription endpoint.
type OpenAI struct {
	client   openai.Client
	model    string
	language string
}

type OpenAIConfig struct {
	APIKey   string
	Model    string
	Language string
	// HTTPClient routes requests, e.g. through a SOCKS proxy.
	HTTPClient *http.Client
	BaseURL    string
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.AudioModelWhisper1)
	}
	return &OpenAI{client: openai.NewClient(opts...), model: cfg.Model, language: cfg.Language}
}

func (o *OpenAI) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	wav, err := audioconv.EncodeWAV(pcm, sampleRate)
	if err != nil {
		return "", err
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: openai.AudioModel(o.model),
	}
	if o.language != "" && o.language != "auto" {
		params.Language = openai.String(o.language)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
