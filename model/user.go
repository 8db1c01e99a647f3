package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Profession   string    `json:"profession,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the authenticated view of a user carried inside tokens and
// attached to requests. It never carries secret fields.
type Identity struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	Profession string `json:"profession,omitempty"`
}

func (u *User) Identity() Identity {
	return Identity{
		ID:         u.ID,
		Role:       u.Role,
		Profession: u.Profession,
	}
}

type UserSearchCriteria struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
