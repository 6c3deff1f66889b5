package model

// Identity is the caller of a request as asserted by the auth provider.
// It is passed explicitly into every use case; there is no ambient "current user".
type Identity struct {
	UserID string
	Email  string
	Roles  []string
}

// Anonymous is a guest caller with no session.
var Anonymous = Identity{}

func (i Identity) IsZero() bool { return i.UserID == "" }

func (i Identity) IsAdmin() bool {
	for _, r := range i.Roles {
		if r == "admin" {
			return true
		}
	}
	return false
}
