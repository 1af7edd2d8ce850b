package request

// RegisterRequest is the request body for registering a user
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,max=128"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token for refresh and logout
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// UpdatePasswordRequest is the request body for changing password
type UpdatePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,max=128"`
}

// CreateGroupRequest is the request body for creating a group
type CreateGroupRequest struct {
	GroupName string `json:"group_name" validate:"required,max=100"`
}

// AddMemberRequest is the request body for adding another user to a group
type AddMemberRequest struct {
	Username string `json:"username" validate:"required"`
}

// AddMovieRequest is the request body for proposing a movie
type AddMovieRequest struct {
	ID    string `json:"id,omitempty" validate:"omitempty,max=64"`
	Title string `json:"title" validate:"required,max=200"`
	Year  int    `json:"year,omitempty" validate:"omitempty,min=1870,max=2100"`
}

// ReadyRequest is the request body for flagging readiness
type ReadyRequest struct {
	Ready *bool `json:"ready" validate:"required"`
}
