package models

import (
	"time"

	id "spamgate/pkg/domain"
)

// Message is an accepted contact form submission.
type Message struct {
	ID        id.MessageID
	Name      string
	Email     string
	Subject   string
	Body      string
	CreatedAt time.Time
	// IP is stored anonymized.
	IP string
}

// SubmitRequest is a posted contact form.
type SubmitRequest struct {
	Name         string `validate:"required,max=100"`
	Email        string `validate:"required,email,max=254"`
	Subject      string `validate:"max=200"`
	Body         string `validate:"required,max=5000"`
	CaptchaToken string
}
