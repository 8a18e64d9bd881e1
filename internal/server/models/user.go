// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account that can sign in. PasswordHash holds a self-describing
// argon2id hash and is never serialized to clients.
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	IsAdmin      bool      `db:"is_admin"`
	CreatedAt    time.Time `db:"created_at"`
}
