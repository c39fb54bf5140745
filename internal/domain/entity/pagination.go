package entity

// PaginationParams represents pagination request parameters
type PaginationParams struct {
	Page    int `json:"page" query:"page"`
	PerPage int `json:"per_page" query:"per_page"`
}

// PaginationMeta represents pagination metadata in responses
type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
}

// PaginatedLinksResponse represents a page of payment links
type PaginatedLinksResponse struct {
	Data       []*PaymentLink `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// Pagination constants
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	MinPageSize     = 1
	DefaultPage     = 1
)

// Validate validates and normalizes pagination parameters
func (p *PaginationParams) Validate() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}

	if p.PerPage < MinPageSize {
		p.PerPage = DefaultPageSize
	} else if p.PerPage > MaxPageSize {
		p.PerPage = MaxPageSize
	}
}

// CalculateOffset calculates the database offset from page and limit
func (p *PaginationParams) CalculateOffset() int {
	return (p.Page - 1) * p.PerPage
}

// NewPaginationMeta creates pagination metadata from parameters and total count
func NewPaginationMeta(page, perPage int, total int64) PaginationMeta {
	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	return PaginationMeta{
		CurrentPage: page,
		PerPage:     perPage,
		Total:       total,
		TotalPages:  totalPages,
	}
}
