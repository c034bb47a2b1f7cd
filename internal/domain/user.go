package domain

import "time"

type User struct {
	ID           int64
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	TelegramID   int64
	Blocked      bool
	CreatedAt    time.Time
}

// DisplayName is what counterparties see in notifications and deal records.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
