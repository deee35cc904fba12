package model

// Credential is an opaque bearer token issued by GitHub.
// Nothing in this application parses it; possession implies authorization.
type Credential string

// Location records where a credential was found.
type Location string

const (
	LocationCookie  Location = "cookie"
	LocationHeader  Location = "header"
	LocationStorage Location = "storage"
	LocationMemory  Location = "memory"
)

// String masks the credential so it can't leak through %v or slog.
func (c Credential) String() string {
	if len(c) <= 4 {
		return "****"
	}
	return string(c[:4]) + "****"
}

// Value returns the raw token for use in an Authorization header or cookie.
func (c Credential) Value() string {
	return string(c)
}

// Session is the derived authenticated state: a credential plus the profile it
// resolves to. A nil *Session means anonymous.
type Session struct {
	Credential Credential `json:"-"`
	Profile    *Profile   `json:"profile"`
	Source     Location   `json:"source"`
}
