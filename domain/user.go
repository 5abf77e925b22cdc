package domain

// User is the logged-in identity. Only a display name is kept.
type User struct {
	Username string `json:"username"`
}
