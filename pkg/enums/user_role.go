package enums

// UserRole separates sellers from buyers. It is carried in the access token.
type UserRole string

const (
	UserRoleFarmer UserRole = "farmer"
	UserRoleBuyer  UserRole = "buyer"
)

var userRoles = values[UserRole]{UserRoleFarmer, UserRoleBuyer}

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool { return userRoles.has(r) }

func ParseUserRole(value string) (UserRole, error) {
	return userRoles.parse("user role", value)
}
