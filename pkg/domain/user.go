package domain

// User is the authenticated caller as returned by /auth/me.
// Only the fields the client displays are decoded.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Status   string `json:"status"`
	Roles    []Role `json:"roles"`
}

// Role is a named role assigned to a user.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
