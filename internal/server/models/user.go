package models

const SubscriptionActive = "active"

// User is the part of an account the image service cares about.
type User struct {
	ID                 string
	SubscriptionStatus string
}

// Entitled reports whether the user gets watermark-free output.
func (u *User) Entitled() bool {
	return u.SubscriptionStatus == SubscriptionActive
}
