package clients

import "time"

// Client is an OAuth-style application a user may own or grant access
// to. Read-only for the core.
type Client struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	LogoURL     string    `json:"logoUrl,omitempty"`
	Secret      string    `json:"-"` // stripped before any response
	CreatedAt   time.Time `json:"createdAt"`
}

// Summary is the sanitized view of a client, safe to return to end
// users: display metadata only, no secret.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty"`
}

// Sanitize strips credentials and owner-only fields.
func (c Client) Sanitize() Summary {
	return Summary{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		LogoURL:     c.LogoURL,
	}
}
