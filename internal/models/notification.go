package models

// Notification is a rendered booking request ready for a delivery channel.
type Notification struct {
	To       string `json:"to"`
	Cc       string `json:"cc,omitempty"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	Text     string `json:"text"`
}
