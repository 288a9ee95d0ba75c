// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ai

import "strings"

// LocalFallback formats text into a usable prompt without calling the
// collaborator. Deterministic: the prompt endpoints return this with a
// warning when the upstream call fails, because some usable output beats a
// hard error for the extension.
func LocalFallback(text string) string {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return ""
	}

	return strings.Join([]string{
		"You are a practical assistant.",
		"",
		"Task:",
		raw,
		"",
		"Rules:",
		"- Be accurate and concise.",
		"- If critical info is missing, ask only necessary questions.",
		"",
		"Output format:",
		"1) Short answer",
		"2) Actionable steps",
	}, "\n")
}
