package enums

// Role scopes what an authenticated caller may do.
type Role string

const (
	RoleBuyer Role = "buyer"
	RoleAdmin Role = "admin"
)

var roles = values[Role]{RoleBuyer, RoleAdmin}

func (r Role) IsValid() bool { return roles.has(r) }
