package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is a user identifier. The backend encodes it as a JSON number while
// older web clients stored it as a string; both decode.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Role is the account role assigned by the backend.
type Role string

const (
	RoleParent Role = "PARENT"
	RoleAdmin  Role = "ADMIN"
)

// User is the identity record returned by the backend.
type User struct {
	ID            ID     `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Avatar        string `json:"avatar,omitempty"`
	Nickname      string `json:"nickname"`
	City          string `json:"city,omitempty"`
	Role          Role   `json:"role"`
	EmailVerified bool   `json:"emailVerified,omitempty"`
	PhoneVerified bool   `json:"phoneVerified,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// Envelope is the backend's uniform response wrapper.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    *T     `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
	Remember        bool   `json:"remember,omitempty"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Phone           string `json:"phone"`
	Nickname        string `json:"nickname"`
	ConfirmPassword string `json:"confirmPassword"`
	Agreement       bool   `json:"agreement"`
}

// AuthPayload is the data of a successful login, register or refresh.
type AuthPayload struct {
	Token string `json:"token"`
	Type  string `json:"type,omitempty"`
	User  *User  `json:"user,omitempty"`
}

// ProfileUpdate is the body of PUT /auth/profile. Nil fields are omitted.
type ProfileUpdate struct {
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Nickname *string `json:"nickname,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	City     *string `json:"city,omitempty"`
}

// ChangePasswordRequest is the body of PUT /auth/change-password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}
