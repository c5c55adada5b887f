package models

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

type AuthOpenRequest struct {
	Mode string `json:"mode"`
}

func (r *AuthOpenRequest) Validate() error {
	r.Mode = strings.ToLower(strings.TrimSpace(r.Mode))
	if r.Mode == "" {
		r.Mode = "login"
	}
	if !ValidAuthModes[r.Mode] {
		return &ErrorResponse{Code: "invalid_mode", Message: "mode must be one of: login, register"}
	}
	return nil
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// implements the Validator interface
func (r *RegisterRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))

	if r.Name == "" || r.Email == "" || r.Password == "" {
		return &ErrorResponse{Code: "missing_fields", Message: "All fields are required"}
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return &ErrorResponse{Code: "invalid_email", Message: "Email address is not valid"}
	}
	if utf8.RuneCountInString(r.Password) < 6 {
		return &ErrorResponse{Code: "weak_password", Message: "Password must be at least 6 characters"}
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" || r.Password == "" {
		return &ErrorResponse{Code: "missing_fields", Message: "Email and password are required"}
	}
	return nil
}

type ResponseTextRequest struct {
	Text string `json:"text"`
}

func (r *ResponseTextRequest) Validate() error {
	return nil
}

type RecordingStartRequest struct {
	MimeType string `json:"mimeType"`
}

func (r *RecordingStartRequest) Validate() error {
	r.MimeType = strings.TrimSpace(r.MimeType)
	if r.MimeType == "" {
		r.MimeType = "audio/webm"
	}
	if !strings.HasPrefix(r.MimeType, "audio/") {
		return &ErrorResponse{Code: "invalid_mime_type", Message: "mimeType must be an audio type"}
	}
	return nil
}

type PreferredRoleRequest struct {
	PreferredRole string `json:"preferredRole"`
}

func (r *PreferredRoleRequest) Validate() error {
	r.PreferredRole = strings.TrimSpace(r.PreferredRole)
	if utf8.RuneCountInString(r.PreferredRole) > 120 {
		return &ErrorResponse{Code: "invalid_role", Message: "preferredRole must be at most 120 characters"}
	}
	return nil
}
