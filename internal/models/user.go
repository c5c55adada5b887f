package models

// User is the domain identity. Credentials never leave the auth package.
type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	PreferredRole string `json:"preferredRole,omitempty"`
}
