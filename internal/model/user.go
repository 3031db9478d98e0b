package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account in the system
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        *string   `json:"email,omitempty"`
	Phone        *string   `json:"phone,omitempty"`
	PasswordHash string    `json:"-"` // Do not expose password hash in JSON responses
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// SignupRequest carries the fields accepted by POST /signup.
// Identifier is accepted as an alias of Username.
type SignupRequest struct {
	Username   string  `json:"username"`
	Identifier string  `json:"identifier"`
	Password   string  `json:"password"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
}

// Login returns the canonical login identifier of the request.
func (r SignupRequest) Login() string {
	if r.Username != "" {
		return r.Username
	}
	return r.Identifier
}

type LoginRequest struct {
	Username   string `json:"username"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (r LoginRequest) Login() string {
	if r.Username != "" {
		return r.Username
	}
	return r.Identifier
}
