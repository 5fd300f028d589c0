package model

// Principal identifies the caller for the lifetime of one request. The email
// doubles as the identity namespace suffix for the persisted document; an
// anonymous principal maps to the shared namespace.
type Principal struct {
	UserID string
	Email  string
}

func (p Principal) IsAnonymous() bool {
	return p.Email == ""
}
