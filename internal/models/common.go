package models

// Pagination describes the slice of a collection returned by a list call.
type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
