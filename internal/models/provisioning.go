package models

// UserRecord is one input row of a bulk import.
type UserRecord struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
