package model

import "time"

// User represents an application user record as stored in the `users`
// table. The password is stored only as a bcrypt digest; handlers define
// separate response types so the digest never leaks into JSON.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address, lower-cased on insert.
//  PasswordHash – bcrypt digest of the password.
//  Role         – account role drawn from the closed Role set.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
