package types

// User represents a registered account.
// Profile fields are stored as submitted; only Role is server controlled.
type User struct {
	// ID is the store-assigned identifier of the user.
	ID string `json:"id,omitempty" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name,omitempty" db:"name"`

	// Email is the user's email address and the uniqueness key for registration.
	Email string `json:"email" db:"email"`

	// Password is persisted as received unless password hashing is enabled.
	Password string `json:"password,omitempty" db:"password"`

	// Phone is an optional contact number.
	Phone string `json:"phone,omitempty" db:"phone"`

	// Location is an optional free-form farm or region description.
	Location string `json:"location,omitempty" db:"location"`

	// Role is always assigned by the server on registration.
	Role string `json:"role" db:"role"`

	// Profile holds any further registration fields, stored verbatim.
	Profile map[string]any `json:"-" db:"profile"`
}

// RoleFarmer is the role every self-registered user receives.
const RoleFarmer = "FARMER"
