package domain

// Identity is the authenticated user as stored in a session blob.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
}
