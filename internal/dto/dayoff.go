package dto

// CreateDayOffRequest records an absence range for a resident.
type CreateDayOffRequest struct {
	ResidentID string `json:"residentId" binding:"required"`
	TypeID     string `json:"typeId" binding:"required"`
	StartDate  string `json:"startDate" binding:"required"` // YYYY-MM-DD
	EndDate    string `json:"endDate" binding:"required"`   // YYYY-MM-DD
	Notes      string `json:"notes"`
}
