package domain

type UserID string

// User is the signed-in account as returned by the auth endpoint.
type User struct {
	ID    UserID `json:"id"`
	Email string `json:"email"`
}
