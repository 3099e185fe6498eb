package models

import "time"

// Wallet is the custodial key material held for one user. The private key
// never leaves the backend; the address is derived from the public key.
type Wallet struct {
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// User is one Telegram identity known to the bot. The wallet is set at most
// once per user and never rotated.
type User struct {
	ID                   int64      `json:"id"`
	Username             string     `json:"username"`
	Wallet               *Wallet    `json:"wallet,omitempty"`
	DisclaimerAcceptedAt *time.Time `json:"disclaimer_accepted_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func NewUser(id int64, username string) *User {
	now := time.Now()
	return &User{
		ID:        id,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AcceptedDisclaimer reports whether the user has accepted the disclaimer.
func (u *User) AcceptedDisclaimer() bool {
	return u.DisclaimerAcceptedAt != nil
}

// AcceptDisclaimer records the acceptance timestamp.
func (u *User) AcceptDisclaimer() {
	now := time.Now()
	u.DisclaimerAcceptedAt = &now
	u.UpdatedAt = now
}
