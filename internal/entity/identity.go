package entity

type Role string

const (
	RoleGuest    Role = "guest"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleEmployee, RoleAdmin:
		return true
	}

	return false
}

// Identity is the authenticated user as issued by the login endpoint.
type Identity struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (i Identity) Ref() UserRef {
	return UserRef{ID: i.ID, Name: i.Name}
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is what the API returns for a successful login or registration.
type AuthResult struct {
	Token    string   `json:"token"`
	Identity Identity `json:"user"`
}

// StoredSession is the durable record kept between process restarts.
type StoredSession struct {
	Identity Identity
	Token    string
}
