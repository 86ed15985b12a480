package identity

import "time"

// Account is a registered user, identified by their 10 digit number.
type Account struct {
	ID        string
	Name      string
	Phone     string
	PassHash  []byte
	CreatedAt time.Time
}

// Credentials request structure.
type Credentials struct {
	Name  string
	Phone string
	Pass  string
}
