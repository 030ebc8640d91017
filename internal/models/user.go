package models

import "time"

// Location is a longitude/latitude pair. Users without a location carry a
// nil *Location, which is not the same as (0,0).
type Location struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	AvatarURL    string    `json:"avatarUrl"`
	PasswordHash string    `json:"-"`
	Location     *Location `json:"location,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u *User) HasLocation() bool {
	return u != nil && u.Location != nil
}

// NearbyUser is one entry of a nearest-users result. Distance is nil when
// either side lacks coordinates.
type NearbyUser struct {
	UserID    string   `json:"userId"`
	AvatarURL string   `json:"avatarUrl"`
	Username  string   `json:"username"`
	Distance  *float64 `json:"distance"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// LocationUpdateRequest clears the location when both fields are nil.
type LocationUpdateRequest struct {
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
}

type OnlineStatus struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}
