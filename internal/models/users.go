package models

// User is a read-only profile reference. The relay never mutates users;
// profile management lives in another service.
type User struct {
	UserID string `json:"_id" db:"user_id"`
	Name   string `json:"name" db:"name"`
	Pic    string `json:"pic" db:"pic"`
	Email  string `json:"email" db:"email"`
}
