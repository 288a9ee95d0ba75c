// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ai calls the OpenAI text-generation collaborator. Callers treat
// failures as degradable: the prompt handlers fall back to the local
// formatter rather than surfacing an error status.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/promptqa/copilot/internal/domain"
)

const defaultBaseURL = "https://api.openai.com/v1"

var ErrNotConfigured = errors.New("openai api key is not configured")

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	mock       bool
}

func NewClient(cfg domain.OpenAIConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		mock:       cfg.Mock,
	}
}

// Model returns the configured model name, echoed in prompt responses.
func (c *Client) Model() string {
	return c.model
}

// Complete sends systemPrompt/userPrompt to the Responses API, falling
// back to Chat Completions when that fails. In mock mode it returns a
// canned echo without any network call.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.mock {
		mocked := userPrompt
		if len(mocked) > 600 {
			mocked = mocked[:600]
		}
		return "[MOCK] " + mocked, nil
	}

	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	output, firstErr := c.completeResponses(ctx, systemPrompt, userPrompt)
	if firstErr == nil {
		return output, nil
	}

	log.Debug().Err(firstErr).Msg("Responses API failed, trying chat completions")

	output, secondErr := c.completeChat(ctx, systemPrompt, userPrompt)
	if secondErr == nil {
		return output, nil
	}

	return "", errors.Wrapf(secondErr, "openai responses failed (%v); chat completions failed", firstErr)
}

type responsesRequest struct {
	Model       string          `json:"model"`
	Input       []responseInput `json:"input"`
	Temperature float64         `json:"temperature"`
}

type responseInput struct {
	Role    string            `json:"role"`
	Content []responseContent `json:"content"`
}

type responseContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (c *Client) completeResponses(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body := responsesRequest{
		Model: c.model,
		Input: []responseInput{
			{Role: "system", Content: []responseContent{{Type: "input_text", Text: systemPrompt}}},
			{Role: "user", Content: []responseContent{{Type: "input_text", Text: userPrompt}}},
		},
		Temperature: 0.4,
	}

	var parsed struct {
		OutputText string `json:"output_text"`
	}
	if err := c.post(ctx, "/responses", body, &parsed); err != nil {
		return "", err
	}

	return trimmed(parsed.OutputText)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) completeChat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.4,
	}

	var parsed struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", body, &parsed); err != nil {
		return "", err
	}

	if len(parsed.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	return trimmed(parsed.Choices[0].Message.Content)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return errors.Errorf("openai error %d on %s: %s", resp.StatusCode, path, detail)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}

	return nil
}

func trimmed(s string) (string, error) {
	out := bytes.TrimSpace([]byte(s))
	if len(out) == 0 {
		return "", errors.New("empty completion")
	}
	return string(out), nil
}
