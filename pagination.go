package finder

const (
	DefaultPageSize = 10

	// UnknownTotalCount marks a total count that has not been computed yet.
	UnknownTotalCount = -1
)

type PaginationKind string

const (
	PaginationKindPageNumber PaginationKind = "pageNumber"
	PaginationKindInfinite   PaginationKind = "infinite"
)

// Pagination is implemented by *PageNumberPagination and *InfinitePagination only.
type Pagination interface {
	Kind() PaginationKind
	Size() int
	Total() int
	NeedsTotalCount() bool
	SetTotalCount(totalCount int)

	sealed()
}

type PageNumberPagination struct {
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}

func NewPageNumberPagination(pageNumber, pageSize int) *PageNumberPagination {
	return &PageNumberPagination{
		PageNumber: max(pageNumber, 1),
		PageSize:   pageSize,
		TotalCount: UnknownTotalCount,
	}
}

func (*PageNumberPagination) Kind() PaginationKind { return PaginationKindPageNumber }

func (p *PageNumberPagination) Size() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	return p.PageSize
}

// Number is the 1-based page number, anything below 1 is page 1.
func (p *PageNumberPagination) Number() int {
	return max(p.PageNumber, 1)
}

func (p *PageNumberPagination) Skip() int {
	return (p.Number() - 1) * p.Size()
}

func (p *PageNumberPagination) Take() int {
	return p.Size()
}

func (p *PageNumberPagination) Total() int { return p.TotalCount }

// NeedsTotalCount asks for a count while the known total is smaller than one page.
func (p *PageNumberPagination) NeedsTotalCount() bool {
	return p.TotalCount < p.Size()
}

func (p *PageNumberPagination) SetTotalCount(totalCount int) {
	p.TotalCount = totalCount
}

func (*PageNumberPagination) sealed() {}

// InfinitePagination pages by primary key. Both bounds are exclusive and ignored when not positive.
type InfinitePagination struct {
	FirstItemID int64 `json:"firstItemId"`
	LastItemID  int64 `json:"lastItemId"`
	PageSize    int   `json:"pageSize"`
	TotalCount  int   `json:"totalCount"`
}

func NewInfinitePagination(firstItemID, lastItemID int64, pageSize int) *InfinitePagination {
	return &InfinitePagination{
		FirstItemID: firstItemID,
		LastItemID:  lastItemID,
		PageSize:    pageSize,
		TotalCount:  UnknownTotalCount,
	}
}

func (*InfinitePagination) Kind() PaginationKind { return PaginationKindInfinite }

func (p *InfinitePagination) Size() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	return p.PageSize
}

func (p *InfinitePagination) Total() int { return p.TotalCount }

func (*InfinitePagination) NeedsTotalCount() bool { return false }

func (p *InfinitePagination) SetTotalCount(totalCount int) {
	p.TotalCount = totalCount
}

func (*InfinitePagination) sealed() {}
