package helpers

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const eventAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
const eventIDLength = 21

// NewEventID returns a random analytics event id.
func NewEventID() (string, error) {
	return gonanoid.Generate(eventAlphabet, eventIDLength)
}

// NewLinkID returns a random link id.
func NewLinkID() string {
	return uuid.NewString()
}
