// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package lemonsqueezy maps LemonSqueezy webhook traffic onto the local
// license model: signature verification, payload parsing, and the
// event-to-license-patch resolution rules.
package lemonsqueezy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex-encoded HMAC-SHA-256 of the raw request
// body, keyed by the shared webhook secret.
const SignatureHeader = "x-signature"

// VerifySignature reports whether signatureHeader matches the HMAC-SHA-256
// of rawBody under secret. rawBody must be the exact bytes received on the
// wire; re-serialized JSON will not hash to the same digest.
//
// Returns false, never an error: empty secret, empty header, and malformed
// hex all fail closed. The digest comparison is constant-time.
func VerifySignature(rawBody []byte, signatureHeader, secret string) bool {
	if secret == "" || signatureHeader == "" {
		return false
	}

	provided, err := hex.DecodeString(strings.TrimSpace(signatureHeader))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)

	return hmac.Equal(mac.Sum(nil), provided)
}

// Sign computes the hex-encoded HMAC-SHA-256 of body under secret. Used by
// tests and by operators crafting replay payloads.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
