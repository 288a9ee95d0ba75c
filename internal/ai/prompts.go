// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ai

import (
	"context"
	"strings"
)

// RefineContext carries the optional fields of a refine request.
type RefineContext struct {
	Goal         string `json:"goal"`
	Tone         string `json:"tone"`
	Constraints  string `json:"constraints"`
	OutputFormat string `json:"outputFormat"`
}

const improveSystemPrompt = "You are Prompt QA Copilot. " +
	"Rewrite user text into a high-quality AI prompt. " +
	"Keep intent unchanged. " +
	"Return only the rewritten prompt."

const refineSystemPrompt = "You are Prompt QA Copilot. " +
	"Refine user text into a highly specific, execution-ready AI prompt. " +
	"Use given context fields (goal, tone, constraints, output format). " +
	"Return only the refined prompt."

// Improve rewrites text into a higher-quality prompt.
func (c *Client) Improve(ctx context.Context, text, mode string) (string, error) {
	user := strings.Join([]string{
		"Mode: " + mode,
		"Text:",
		text,
	}, "\n")

	return c.Complete(ctx, improveSystemPrompt, user)
}

// Refine rewrites text into an execution-ready prompt using the context
// fields the client collected.
func (c *Client) Refine(ctx context.Context, text, mode string, rc RefineContext) (string, error) {
	user := strings.Join([]string{
		"Mode: " + mode,
		"Goal: " + orNA(rc.Goal),
		"Tone: " + orNA(rc.Tone),
		"Constraints: " + orNA(rc.Constraints),
		"Output format: " + orNA(rc.OutputFormat),
		"",
		"Text:",
		text,
	}, "\n")

	return c.Complete(ctx, refineSystemPrompt, user)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "n/a"
	}
	return s
}
