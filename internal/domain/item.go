package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// ItemStatusProcessed is written to Item.Status by a successful processing task.
const ItemStatusProcessed = "PROCESSED"

// Item is the record managed by the service and transformed by batch processing.
type Item struct {
	ID          int64
	Name        string
	Description string
	Status      string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Normalize trims surrounding whitespace from user supplied fields.
func (i *Item) Normalize() {
	i.Name = strings.TrimSpace(i.Name)
	i.Description = strings.TrimSpace(i.Description)
	i.Status = strings.TrimSpace(i.Status)
	i.Email = strings.TrimSpace(i.Email)
}

func (i *Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(i.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if strings.TrimSpace(i.Status) == "" {
		return fmt.Errorf("%w: status is required", ErrValidation)
	}
	if strings.TrimSpace(i.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if !IsValidEmail(i.Email) {
		return fmt.Errorf("%w: invalid email %q", ErrValidation, i.Email)
	}
	return nil
}

// IsValidEmail reports whether s is a bare address such as user@example.com.
// Display-name forms ("Jane <jane@example.com>") are rejected.
func IsValidEmail(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return false
	}

	at := strings.LastIndex(trimmed, "@")
	return at > 0 && at < len(trimmed)-1
}
