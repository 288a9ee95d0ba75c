// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// Config represents the application configuration
type Config struct {
	Host           string             `toml:"host" mapstructure:"host"`
	Port           int                `toml:"port" mapstructure:"port"`
	BaseURL        string             `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel       string             `toml:"logLevel" mapstructure:"logLevel"`
	LogPath        string             `toml:"logPath" mapstructure:"logPath"`
	DatabasePath   string             `toml:"databasePath" mapstructure:"databasePath"`
	AdminToken     string             `toml:"adminToken" mapstructure:"adminToken"`
	RequirePro     bool               `toml:"requirePro" mapstructure:"requirePro"`
	MetricsEnabled bool               `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	LemonSqueezy   LemonSqueezyConfig `toml:"lemonSqueezy" mapstructure:"lemonSqueezy"`
	OpenAI         OpenAIConfig       `toml:"openai" mapstructure:"openai"`
	HTTPTimeouts   HTTPTimeouts       `toml:"httpTimeouts" mapstructure:"httpTimeouts"`
}

// HTTPTimeouts represents HTTP server timeout configuration
type HTTPTimeouts struct {
	ReadTimeout  int `toml:"readTimeout" mapstructure:"readTimeout"`   // seconds
	WriteTimeout int `toml:"writeTimeout" mapstructure:"writeTimeout"` // seconds
	IdleTimeout  int `toml:"idleTimeout" mapstructure:"idleTimeout"`   // seconds
}

// LemonSqueezyConfig holds the webhook shared secret and licensing policy.
//
// ProVariantIDs is a comma-separated allow-list of variant IDs that grant
// the pro tier. An EMPTY list is fail-open: any paid event is treated as
// pro. That default exists so a misconfigured deployment locks nobody out,
// at the cost of granting access for unrelated SKUs. Set the list in any
// deployment that sells more than one product.
type LemonSqueezyConfig struct {
	WebhookSecret string `toml:"webhookSecret" mapstructure:"webhookSecret"`
	ProVariantIDs string `toml:"proVariantIds" mapstructure:"proVariantIds"`
	CheckoutURL   string `toml:"checkoutUrl" mapstructure:"checkoutUrl"`
}

// ProVariantIDList splits the comma-separated allow-list, dropping blanks.
func (c LemonSqueezyConfig) ProVariantIDList() []string {
	var ids []string
	for _, id := range strings.Split(c.ProVariantIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// OpenAIConfig represents the AI collaborator settings
type OpenAIConfig struct {
	APIKey         string `toml:"apiKey" mapstructure:"apiKey"`
	Model          string `toml:"model" mapstructure:"model"`
	TimeoutSeconds int    `toml:"timeoutSeconds" mapstructure:"timeoutSeconds"`
	Mock           bool   `toml:"mock" mapstructure:"mock"`
}
