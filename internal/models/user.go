package models

import "time"

// User is an account anchored to a wallet address. The public key is an
// opaque client-side encryption key; the server never uses it beyond
// format validation at registration.
type User struct {
	ID            string    `db:"id" json:"id"`
	Username      string    `db:"username" json:"username"`
	WalletAddress string    `db:"wallet_address" json:"wallet_address"`
	PublicKey     string    `db:"public_key" json:"public_key"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	LastSeen      time.Time `db:"last_seen" json:"last_seen"`
}

// PublicUser is the API-facing shape of a user.
type PublicUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	WalletAddress string `json:"wallet_address"`
	PublicKey     string `json:"public_key,omitempty"`
}

// Public strips server-side fields.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		WalletAddress: u.WalletAddress,
		PublicKey:     u.PublicKey,
	}
}
