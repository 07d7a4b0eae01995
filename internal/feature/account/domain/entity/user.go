// Package entity defines the domain entities for the account feature.
package entity

// User is the public view of a registered user. It never carries credentials.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Credits int    `json:"credits"`
	IsAdmin bool   `json:"isAdmin"`
	Avatar  string `json:"avatar,omitempty"`
}

// UserRecord is the stored form of a user: the public view plus the bcrypt password hash.
type UserRecord struct {
	User
	PasswordHash string `json:"passwordHash"`
}

// Public strips the credential from the record.
func (r UserRecord) Public() User {
	return r.User
}

// AdminSeed describes the administrator created on an empty store.
type AdminSeed struct {
	Email    string
	Password string
	Name     string
	Credits  int
}
