package models

// ImportUsersRequest carries the records for a bulk import run.
type ImportUsersRequest struct {
	Users []UserRecord `json:"users" validate:"required,min=1,dive"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}
