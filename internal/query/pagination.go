package query

import (
	"errors"
	"fmt"
	"slices"
)

var DefaultPageSizes = []int{10, 20, 50, 100}

const DefaultPageSize = 20

var ErrPageSize = errors.New("page size not allowed")

// Pagination tracks the current page of a list. It is not safe for
// concurrent use on its own; Composer guards it.
type Pagination struct {
	page        int
	size        int
	defaultSize int
	sizes       []int
	total       int
	totalKnown  bool
}

// NewPagination returns page 1 at defaultSize. sizes defaults to
// DefaultPageSizes; defaultSize must be one of them.
func NewPagination(sizes []int, defaultSize int) (*Pagination, error) {
	if len(sizes) == 0 {
		sizes = DefaultPageSizes
	}
	if defaultSize == 0 {
		defaultSize = DefaultPageSize
	}
	for _, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrPageSize, s)
		}
	}
	if !slices.Contains(sizes, defaultSize) {
		return nil, fmt.Errorf("%w: default %d not in %v", ErrPageSize, defaultSize, sizes)
	}
	return &Pagination{
		page:        1,
		size:        defaultSize,
		defaultSize: defaultSize,
		sizes:       slices.Clone(sizes),
	}, nil
}

func (p *Pagination) Page() int        { return p.page }
func (p *Pagination) PageSize() int    { return p.size }
func (p *Pagination) DefaultSize() int { return p.defaultSize }
func (p *Pagination) TotalCount() int  { return p.total }
func (p *Pagination) Sizes() []int     { return slices.Clone(p.sizes) }

// Offset is the number of rows before the current page.
func (p *Pagination) Offset() int { return (p.page - 1) * p.size }

// TotalPages is never below 1, so an empty list still has a first page.
func (p *Pagination) TotalPages() int {
	if p.total <= 0 {
		return 1
	}
	return (p.total + p.size - 1) / p.size
}

// SetPage moves to n. Until a total count is known only the lower bound is
// enforced; afterwards n is clamped to the last page.
func (p *Pagination) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	if p.totalKnown && n > p.TotalPages() {
		n = p.TotalPages()
	}
	p.page = n
}

func (p *Pagination) NextPage() {
	if p.page < p.TotalPages() {
		p.page++
	}
}

func (p *Pagination) PreviousPage() {
	if p.page > 1 {
		p.page--
	}
}

// SetPageSize switches to n and goes back to the first page.
func (p *Pagination) SetPageSize(n int) error {
	if !slices.Contains(p.sizes, n) {
		return fmt.Errorf("%w: %d", ErrPageSize, n)
	}
	if n != p.size {
		p.size = n
		p.page = 1
	}
	return nil
}

// SetTotalCount records the total number of rows and re-clamps the page.
func (p *Pagination) SetTotalCount(n int) {
	if n < 0 {
		n = 0
	}
	p.total = n
	p.totalKnown = true
	p.SetPage(p.page)
}

func (p *Pagination) Reset() {
	p.page = 1
	p.size = p.defaultSize
}

func (p *Pagination) HasNext() bool     { return p.page < p.TotalPages() }
func (p *Pagination) HasPrevious() bool { return p.page > 1 }
