// Package deepgram is a minimal client for Deepgram's prerecorded speech
// recognition and text-to-speech endpoints.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const baseURL = "https://api.deepgram.com"

// ErrNoSpeech is returned by Transcribe when the audio held no recognizable
// speech.
var ErrNoSpeech = errors.New("no speech recognized")

type Client struct {
	apiKey   string
	sttModel string
	ttsModel string
	language string
	baseURL  string
	client   *http.Client
}

func NewClient(apiKey, sttModel, ttsModel, language string) *Client {
	return &Client{
		apiKey:   apiKey,
		sttModel: sttModel,
		ttsModel: ttsModel,
		language: language,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// SetTestTransport points the client at a test server.
func (c *Client) SetTestTransport(serverURL string) {
	c.baseURL = serverURL
}

type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type errorResponse struct {
	ErrCode string `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}

// Transcribe sends audio to /v1/listen and returns the best transcript.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, contentType string) (string, error) {
	q := url.Values{}
	q.Set("model", c.sttModel)
	q.Set("smart_format", "true")
	if c.language != "" {
		q.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/listen?"+q.Encode(), audio)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var resp listenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return "", ErrNoSpeech
	}
	text := strings.TrimSpace(resp.Results.Channels[0].Alternatives[0].Transcript)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// Speak renders text with /v1/speak and returns the encoded audio (mp3).
func (c *Client) Speak(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty text")
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	q := url.Values{}
	q.Set("model", c.ttsModel)
	q.Set("encoding", "mp3")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/speak?"+q.Encode(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	audio, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio response")
	}
	return audio, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.ErrCode != "" {
			return nil, fmt.Errorf("deepgram error %d: %s: %s", resp.StatusCode, errResp.ErrCode, errResp.ErrMsg)
		}
		return nil, fmt.Errorf("deepgram error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
