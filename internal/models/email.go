package models

// PasswordResetEmail is everything the mail worker needs to send a reset
// link.
type PasswordResetEmail struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	UIDB64 string `json:"uidb64"`
	Token  string `json:"token"`
}
