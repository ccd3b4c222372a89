package models

import "strings"

// EnvelopeKind classifies an inbound webhook envelope by its type
// discriminator. Unrecognized types are a named case, not a fallthrough.
type EnvelopeKind int

const (
	KindUnknown EnvelopeKind = iota
	KindHandshake
	KindEventCallback
)

// EventEnvelope is the raw inbound webhook payload. It covers both the
// url_verification handshake and event_callback variants.
type EventEnvelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge,omitempty"`
	TeamID    string `json:"team_id,omitempty"`
	APIAppID  string `json:"api_app_id,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	EventTime int64  `json:"event_time,omitempty"`
	Event     Event  `json:"event"`
}

// Kind classifies the envelope. The handshake check runs first: if a payload
// somehow carried both indicators, the handshake wins.
func (e EventEnvelope) Kind() EnvelopeKind {
	switch e.Type {
	case "url_verification":
		return KindHandshake
	case "event_callback":
		return KindEventCallback
	default:
		return KindUnknown
	}
}

// Event is one notification describing a message.
type Event struct {
	Type    string `json:"type"`
	User    string `json:"user"`
	Text    string `json:"text"`
	Channel string `json:"channel"`
	TS      string `json:"ts"`
	EventTS string `json:"event_ts"`
	AppID   string `json:"app_id,omitempty"`
	BotID   string `json:"bot_id,omitempty"`
	SubType string `json:"subtype,omitempty"`
	Hidden  bool   `json:"hidden,omitempty"`
}

// IsDirectMessage reports whether the event's channel is a DM channel.
// Slack DM channel ids carry a "D" prefix.
func (e Event) IsDirectMessage() bool {
	return strings.HasPrefix(e.Channel, "D")
}

// IsSelfAuthored reports whether the event originated from this application.
// An absent app_id is NOT treated as self-authored: failing open keeps real
// user messages flowing from workspaces that omit the field.
func (e Event) IsSelfAuthored(ownAppID string) bool {
	if e.AppID == "" || ownAppID == "" {
		return false
	}
	return e.AppID == ownAppID
}

// ShouldProcess reports whether the event is a visible direct message
// authored by a real user rather than this bot.
func (e Event) ShouldProcess(ownAppID string) bool {
	if e.Type != "message" {
		return false
	}
	if e.Hidden {
		return false
	}
	if !e.IsDirectMessage() {
		return false
	}
	if e.BotID != "" {
		return false
	}
	return !e.IsSelfAuthored(ownAppID)
}
