package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/corvidvoice/corvid/pkg/audio"
)

// OpenAISTT transcribes via OpenAI's Whisper endpoint. The transcription
// endpoint takes a multipart upload rather than a typed request body in
// the SDK used elsewhere in this module, so it is built directly on
// net/http rather than retrofitted onto a shape the SDK doesn't expose.
type OpenAISTT struct {
	apiKey string
	url    string
	model  string
}

func NewOpenAISTT(apiKey, model string) *OpenAISTT {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAISTT{apiKey: apiKey, url: "https://api.openai.com/v1/audio/transcriptions", model: model}
}

func (s *OpenAISTT) Name() string { return "openai_stt" }

func (s *OpenAISTT) Transcribe(ctx context.Context, pcm []byte, sampleRate int, lang string) (string, error) {
	return postTranscription(ctx, s.url, s.apiKey, "Bearer "+s.apiKey, s.model, pcm, sampleRate, lang)
}

// postTranscription is the shared multipart upload shape for OpenAI and
// Groq's Whisper-compatible endpoints.
func postTranscription(ctx context.Context, url, apiKey, authHeader, model string, pcm []byte, sampleRate int, lang string) (string, error) {
	wavData := audio.NewWavBuffer(pcm, sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", model); err != nil {
		return "", err
	}
	if lang != "" {
		if err := writer.WriteField("language", lang); err != nil {
			return "", err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wavData); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", authHeader)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("stt transcription error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Text, nil
}
