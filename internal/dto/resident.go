package dto

// CreateResidentRequest registers a trainee on the program roster.
type CreateResidentRequest struct {
	Name           string  `json:"name" binding:"required" validate:"required"`
	Email          *string `json:"email" validate:"omitempty,email"`
	PGYLevel       string  `json:"pgyLevel" binding:"required" validate:"required,pgy_level"`
	AcademicYearID *string `json:"academicYearId"`
}
