package models

// ErrorBody is the JSON error envelope. Code names the error kind.
type ErrorBody struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID any    `json:"request_id,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalEvents int64 `json:"totalEvents"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPagination computes page metadata for total matches split into pages of pageSize.
func NewPagination(page, pageSize int, total int64) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalEvents: total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

type EventPage struct {
	Events     []*ResolvedEvent `json:"events"`
	Pagination Pagination       `json:"pagination"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token,omitempty"`
	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int `json:"-"`
}
