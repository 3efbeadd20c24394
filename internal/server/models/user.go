package models

import "time"

// User is the persisted identity record. PasswordHash and RefreshTokenHash
// never leave the server; use Public for anything sent to a client.
type User struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	RefreshTokenHash *string

	FirstName   string
	LastName    string
	DateOfBirth string
	City        string
	State       string
	Village     string
	Gender      string
	Occupation  string
	Avatar      string
	Description string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicUser is the safe projection of User.
type PublicUser struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName,omitempty"`
	LastName    string    `json:"lastName,omitempty"`
	DateOfBirth string    `json:"dateOfBirth,omitempty"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	Village     string    `json:"village,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	Occupation  string    `json:"occupation,omitempty"`
	Avatar      string    `json:"avatar"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DateOfBirth: u.DateOfBirth,
		City:        u.City,
		State:       u.State,
		Village:     u.Village,
		Gender:      u.Gender,
		Occupation:  u.Occupation,
		Avatar:      u.Avatar,
		Description: u.Description,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// ProfileUpdate carries the account fields a user may change. Nil fields are
// left as they are.
type ProfileUpdate struct {
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	Description *string `json:"description"`
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	DateOfBirth *string `json:"dateOfBirth"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	Village     *string `json:"village"`
	Gender      *string `json:"gender"`
	Occupation  *string `json:"occupation"`
}

// Apply copies the non-nil fields of p onto u.
func (p *ProfileUpdate) Apply(u *User) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.Username, p.Username)
	set(&u.Email, p.Email)
	set(&u.Description, p.Description)
	set(&u.FirstName, p.FirstName)
	set(&u.LastName, p.LastName)
	set(&u.DateOfBirth, p.DateOfBirth)
	set(&u.City, p.City)
	set(&u.State, p.State)
	set(&u.Village, p.Village)
	set(&u.Gender, p.Gender)
	set(&u.Occupation, p.Occupation)
}

// Fields returns the update as name/value pairs, skipping nil fields.
func (p *ProfileUpdate) Fields() map[string]string {
	out := map[string]string{}
	add := func(name string, v *string) {
		if v != nil {
			out[name] = *v
		}
	}
	add("username", p.Username)
	add("email", p.Email)
	add("description", p.Description)
	add("firstName", p.FirstName)
	add("lastName", p.LastName)
	add("dateOfBirth", p.DateOfBirth)
	add("city", p.City)
	add("state", p.State)
	add("village", p.Village)
	add("gender", p.Gender)
	add("occupation", p.Occupation)
	return out
}
