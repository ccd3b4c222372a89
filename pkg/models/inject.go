package models

// InjectRequest is the manual-injection payload. The message may arrive as a
// plain text body instead; ChartImage is base64 in JSON per encoding/json's
// []byte handling.
type InjectRequest struct {
	Username      string `json:"username,omitempty"`
	Message       string `json:"message"`
	ChartTitle    string `json:"chart_title,omitempty"`
	ChartImage    []byte `json:"chart_image,omitempty"`
	ChartFilename string `json:"chart_filename,omitempty"`
}

// InjectResponse is the structured result of a manual injection.
type InjectResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	UserID    string `json:"userId,omitempty"`
	ChannelID string `json:"channelId,omitempty"`
	Error     string `json:"error,omitempty"`
}
