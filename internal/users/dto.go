package users

// RegisterRequest is the guest self-registration body.
type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=12"`
}

// CreateUserRequest is the admin account creation body.
type CreateUserRequest struct {
	FirstName      string `json:"firstName" validate:"required"`
	LastName       string `json:"lastName" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=12"`
	TargetCalories *int   `json:"targetCalories,omitempty" validate:"omitempty,min=0"`
	AuthLevel      string `json:"authLevel,omitempty" validate:"omitempty,oneof=USER USER_MANAGER ADMIN"`
}

// UpdateUserRequest is a partial profile update. AuthLevel is honoured for
// administrators only.
type UpdateUserRequest struct {
	FirstName      *string `json:"firstName,omitempty" validate:"omitempty,min=1"`
	LastName       *string `json:"lastName,omitempty" validate:"omitempty,min=1"`
	TargetCalories *int    `json:"targetCalories,omitempty" validate:"omitempty,min=0"`
	AuthLevel      *string `json:"authLevel,omitempty" validate:"omitempty,oneof=USER USER_MANAGER ADMIN"`
}
