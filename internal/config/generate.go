// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const defaultConfigTemplate = `# Prompt QA Copilot server configuration
# Every key can be overridden with a COPILOT__ environment variable,
# e.g. COPILOT__PORT=9000 or COPILOT__LEMONSQUEEZY__WEBHOOKSECRET=...

# Address to bind to
host = "localhost"
port = 8787

# Base URL for serving behind a reverse proxy subfolder, e.g. "/copilot"
#baseUrl = "/copilot"

# Log level: TRACE, DEBUG, INFO, WARN, ERROR
logLevel = "INFO"

# Log to a file instead of stderr
#logPath = "copilot.log"

# SQLite database location (default: next to this file)
#databasePath = "copilot.db"

# Token required in the x-admin-token header for admin endpoints.
# Admin endpoints reject everything while this is empty.
adminToken = ""

# When true, the prompt endpoints require an active pro license
requirePro = false

# Expose Prometheus metrics at /metrics
metricsEnabled = false

[lemonSqueezy]
# Shared secret for verifying webhook signatures (x-signature header)
webhookSecret = ""

# Comma-separated variant IDs that grant the pro tier.
# WARNING: an empty list is fail-open -- every paid event grants pro.
# Leave empty only if this store sells a single product.
proVariantIds = ""

# Checkout URL returned to clients as the upgrade link
checkoutUrl = ""

[openai]
apiKey = ""
model = "gpt-4.1-mini"
timeoutSeconds = 30

# Return canned output instead of calling the API (for development)
mock = false

[httpTimeouts]
readTimeout = 60
writeTimeout = 120
idleTimeout = 180
`

// WriteDefaultConfig writes the commented default configuration file,
// creating parent directories as needed.
func WriteDefaultConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
