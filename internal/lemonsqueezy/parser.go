// Copyright (c) 2025, the promptqa contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package lemonsqueezy

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// WebhookEvent is the canonical projection of a webhook payload. It is
// transient: derived per request and never persisted as-is, only the audit
// projection is logged. Nil pointer fields mean the payload did not carry
// the value in any known shape.
type WebhookEvent struct {
	EventName string
	UserID    *string
	Email     *string
	Status    *string
	VariantID *string
	ProductID *string
	OrderID   *string
	TestMode  bool
}

// flexString tolerates upstream fields that arrive as either a JSON string
// or a JSON number (variant_id and friends are numeric on some event
// types, stringified on others).
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}

	// Unrecognized shape resolves to empty rather than failing the parse.
	*f = ""
	return nil
}

// flexBool tolerates booleans that arrive stringified ("true") alongside
// real JSON booleans. Anything else resolves to false.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexBool(strings.EqualFold(strings.TrimSpace(s), "true"))
		return nil
	}

	*f = false
	return nil
}

// customData is the custom_data object LemonSqueezy passes through from
// checkout links. The extension sets user_id to its generated install id;
// the other spellings cover manually-built checkout URLs.
type customData struct {
	UserID       flexString `json:"user_id"`
	UserIDAlt    flexString `json:"userId"`
	InstallID    flexString `json:"install_id"`
	InstallIDAlt flexString `json:"installId"`
}

// UnmarshalJSON swallows shape mismatches (custom_data serialized as a
// string or array) so the enclosing decode stays total.
func (c *customData) UnmarshalJSON(data []byte) error {
	type plain customData
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	*c = customData(p)
	return nil
}

func (c customData) identifier() string {
	for _, v := range []flexString{c.UserID, c.UserIDAlt, c.InstallID, c.InstallIDAlt} {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

// orderItem is the nested shape order-type events carry under
// data.attributes.first_order_item (and order_item on some payloads).
type orderItem struct {
	VariantID     flexString  `json:"variant_id"`
	ProductID     flexString  `json:"product_id"`
	OrderID       flexString  `json:"order_id"`
	CustomerEmail flexString  `json:"customer_email"`
	CustomData    *customData `json:"custom_data"`
}

func (o *orderItem) UnmarshalJSON(data []byte) error {
	type plain orderItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	*o = orderItem(p)
	return nil
}

// attributes covers both known upstream shapes: the flat subscription
// shape and the order shape with a nested first_order_item. Lookups fall
// through in a fixed priority order; values from the two shapes are never
// merged for the same field.
type attributes struct {
	UserEmail     flexString  `json:"user_email"`
	Email         flexString  `json:"email"`
	CustomerEmail flexString  `json:"customer_email"`
	Status        flexString  `json:"status"`
	VariantID     flexString  `json:"variant_id"`
	ProductID     flexString  `json:"product_id"`
	OrderID       flexString  `json:"order_id"`
	CustomData    *customData `json:"custom_data"`

	FirstOrderItem *orderItem `json:"first_order_item"`
	OrderItem      *orderItem `json:"order_item"`
}

func (a *attributes) UnmarshalJSON(data []byte) error {
	type plain attributes
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	*a = attributes(p)
	return nil
}

type payloadMeta struct {
	EventName flexString `json:"event_name"`
	TestMode  flexBool   `json:"test_mode"`
}

func (m *payloadMeta) UnmarshalJSON(data []byte) error {
	type plain payloadMeta
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	*m = payloadMeta(p)
	return nil
}

type payloadData struct {
	Attributes attributes `json:"attributes"`
}

func (d *payloadData) UnmarshalJSON(data []byte) error {
	type plain payloadData
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	*d = payloadData(p)
	return nil
}

type webhookPayload struct {
	Meta      payloadMeta `json:"meta"`
	EventName flexString  `json:"event_name"`
	Data      payloadData `json:"data"`
}

// ParseWebhook extracts a WebhookEvent from raw payload bytes. The only
// failure mode is malformed JSON; within well-formed JSON the function is
// total, resolving missing fields to nil or "unknown" so the resolver can
// make an explicit decision.
func ParseWebhook(raw []byte) (*WebhookEvent, error) {
	if !json.Valid(raw) {
		return nil, errors.New("malformed json payload")
	}

	// Every composite type below tolerates shape mismatches, so within
	// well-formed JSON this decode cannot fail; the error is only possible
	// for a non-object top level, which leaves the zero payload.
	var payload webhookPayload
	_ = json.Unmarshal(raw, &payload)

	attrs := payload.Data.Attributes

	event := &WebhookEvent{
		EventName: normalizeEventName(firstOf(payload.Meta.EventName, payload.EventName)),
		Status:    optional(attrs.Status),
		TestMode:  bool(payload.Meta.TestMode),
		Email:     parseEmail(attrs),
		VariantID: parseItemField(attrs, func(i *orderItem) flexString { return i.VariantID }, attrs.VariantID),
		ProductID: parseItemField(attrs, func(i *orderItem) flexString { return i.ProductID }, attrs.ProductID),
		OrderID:   parseItemField(attrs, func(i *orderItem) flexString { return i.OrderID }, attrs.OrderID),
	}

	event.UserID = parseUserID(attrs, event.Email)

	return event, nil
}

// parseUserID resolves the user identifier: custom-metadata spellings
// first, then the extracted email as a last resort. Email is a fallback,
// not a primary key: a purchase may use a different address than the one
// tied to the extension's install id.
func parseUserID(attrs attributes, email *string) *string {
	custom := attrs.CustomData
	if custom == nil && attrs.FirstOrderItem != nil {
		custom = attrs.FirstOrderItem.CustomData
	}

	if custom != nil {
		if id := custom.identifier(); id != "" {
			return &id
		}
	}

	return email
}

func parseEmail(attrs attributes) *string {
	candidates := []flexString{attrs.UserEmail, attrs.Email, attrs.CustomerEmail}
	if attrs.FirstOrderItem != nil {
		candidates = append(candidates, attrs.FirstOrderItem.CustomerEmail)
	}
	return optional(firstOf(candidates...))
}

// parseItemField takes the flat attribute first, then falls through to
// first_order_item and order_item.
func parseItemField(attrs attributes, pick func(*orderItem) flexString, flat flexString) *string {
	candidates := []flexString{flat}
	if attrs.FirstOrderItem != nil {
		candidates = append(candidates, pick(attrs.FirstOrderItem))
	}
	if attrs.OrderItem != nil {
		candidates = append(candidates, pick(attrs.OrderItem))
	}
	return optional(firstOf(candidates...))
}

func normalizeEventName(name flexString) string {
	normalized := strings.ToLower(strings.TrimSpace(string(name)))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

func firstOf(values ...flexString) flexString {
	for _, v := range values {
		if strings.TrimSpace(string(v)) != "" {
			return v
		}
	}
	return ""
}

func optional(v flexString) *string {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return nil
	}
	return &s
}
