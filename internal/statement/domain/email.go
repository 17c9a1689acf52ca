package domain

import "time"

// RawEmail is a decoded message handed over by a mail source
type RawEmail struct {
	ID         string    `json:"id,omitempty"`
	Subject    string    `json:"subject"`
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// MailQuery selects candidate messages: any of Phrases, received after Since
// when Since is set
type MailQuery struct {
	Phrases []string
	Since   time.Time
}
