package common

// ApiResponse is the envelope for all JSON API responses.
type ApiResponse[T any] struct {
	Data    T      `json:"data"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// PageRequest carries pagination parameters parsed from the query string.
type PageRequest struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// Normalize clamps pagination parameters to their allowed bounds.
func (p *PageRequest) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DEFAULT_PAGE_LIMIT
	}
	if p.Limit > MAX_PAGE_LIMIT {
		p.Limit = MAX_PAGE_LIMIT
	}
}

// Offset returns the row offset for the current page.
func (p *PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PageData wraps a paginated result set.
type PageData[T any] struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Items []T   `json:"items"`
}
