package careauth

import "github.com/huigrowth/careauth/api"

// User is the authenticated identity.
type User = api.User

// Role is the account role assigned by the backend.
type Role = api.Role

// State is a point-in-time copy of the session.
//
// Token is non-empty if and only if User is non-nil.
type State struct {
	User      *User
	Token     string
	IsLoading bool
	Error     string
}

// Authenticated reports whether the state holds an identity.
func (s State) Authenticated() bool {
	return s.User != nil
}

func (s State) clone() State {
	out := s
	out.User = cloneUser(s.User)
	return out
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	out := *u
	return &out
}

// UserPatch is a partial update of a [User]. Nil fields are left unchanged.
type UserPatch struct {
	ID            *api.ID
	Username      *string
	Email         *string
	Phone         *string
	Avatar        *string
	Nickname      *string
	City          *string
	Role          *Role
	EmailVerified *bool
	PhoneVerified *bool
	CreatedAt     *string
	UpdatedAt     *string
}

// Apply returns a copy of u with the non-nil fields of p merged in.
func (p UserPatch) Apply(u User) User {
	if p.ID != nil {
		u.ID = *p.ID
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.Nickname != nil {
		u.Nickname = *p.Nickname
	}
	if p.City != nil {
		u.City = *p.City
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.EmailVerified != nil {
		u.EmailVerified = *p.EmailVerified
	}
	if p.PhoneVerified != nil {
		u.PhoneVerified = *p.PhoneVerified
	}
	if p.CreatedAt != nil {
		u.CreatedAt = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		u.UpdatedAt = *p.UpdatedAt
	}
	return u
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p == UserPatch{}
}

// patchFromUser selects the non-empty fields of u. Verification flags are
// only carried when set, matching their omitempty encoding.
func patchFromUser(u User) UserPatch {
	var p UserPatch
	str := func(v string) *string {
		if v == "" {
			return nil
		}
		return &v
	}
	if u.ID != "" {
		id := u.ID
		p.ID = &id
	}
	if u.Role != "" {
		role := u.Role
		p.Role = &role
	}
	if u.EmailVerified {
		p.EmailVerified = &u.EmailVerified
	}
	if u.PhoneVerified {
		p.PhoneVerified = &u.PhoneVerified
	}
	p.Username = str(u.Username)
	p.Email = str(u.Email)
	p.Phone = str(u.Phone)
	p.Avatar = str(u.Avatar)
	p.Nickname = str(u.Nickname)
	p.City = str(u.City)
	p.CreatedAt = str(u.CreatedAt)
	p.UpdatedAt = str(u.UpdatedAt)
	return p
}

func (p UserPatch) profileUpdate() api.ProfileUpdate {
	return api.ProfileUpdate{
		Email:    p.Email,
		Phone:    p.Phone,
		Nickname: p.Nickname,
		Avatar:   p.Avatar,
		City:     p.City,
	}
}

// RegisterInput is the caller-facing registration form. Only Username and
// Password are required; the backend is the source of truth for validation.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	Phone    string
	Nickname string
}

func (in RegisterInput) request() api.RegisterRequest {
	return api.RegisterRequest{
		Username:        in.Username,
		Email:           in.Email,
		Password:        in.Password,
		Phone:           in.Phone,
		Nickname:        in.Nickname,
		ConfirmPassword: in.Password,
		Agreement:       true,
	}
}

// String is a helper for building a [UserPatch].
func String(v string) *string {
	return &v
}
