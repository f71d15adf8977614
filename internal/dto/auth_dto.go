package dto

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// PinLoginRequest is the device quick-switch path: the register stays
// unlocked and users swap with a 4-digit PIN.
type PinLoginRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Pin    string `json:"pin"     validate:"required,len=4,numeric"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
