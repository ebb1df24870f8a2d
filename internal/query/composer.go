// Package query composes list state (pagination, debounced search and typed
// filters) into one set of API parameters and keeps it mirrored in a URL
// query string.
package query

import (
	"maps"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"
)

const (
	KeyPage     = "page"
	KeyPageSize = "page_size"
	KeySearch   = "search"
)

// URLWriter receives the canonical query string after every committed change.
type URLWriter interface {
	ReplaceQuery(query string)
	PushQuery(query string)
}

type HistoryMode int

const (
	Replace HistoryMode = iota
	Push
)

type Options struct {
	PageSizes       []int
	DefaultPageSize int
	Filters         []FilterDef

	// Debounce is the search delay; Immediate commits every edit at once.
	Debounce  time.Duration
	Immediate bool
	Scheduler Scheduler

	// KeepPageOnChange stops search and filter changes from going back to page 1.
	KeepPageOnChange bool

	Writer  URLWriter
	History HistoryMode
}

// Composer owns the query state of one list. All methods are safe for
// concurrent use; subscribers and the URL writer are called without the lock held.
type Composer struct {
	mu        sync.Mutex
	opts      Options
	pages     *Pagination
	filters   *Filters
	search    *Search
	subs      map[int]func(map[string]string)
	nextSub   int
	lastQuery string
	closed    bool
}

// New returns a composer with every sub-state at its default.
func New(opts Options) (*Composer, error) {
	return FromValues(nil, opts)
}

// FromValues builds a composer from a URL query. Values that do not parse
// fall back to their defaults.
func FromValues(values url.Values, opts Options) (*Composer, error) {
	pages, err := NewPagination(opts.PageSizes, opts.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	filters, err := NewFilters(opts.Filters...)
	if err != nil {
		return nil, err
	}
	c := &Composer{
		opts:    opts,
		pages:   pages,
		filters: filters,
		subs:    make(map[int]func(map[string]string)),
	}
	c.search = NewSearch(opts.Debounce, opts.Scheduler, opts.Immediate, c.searchCommitted)

	if values != nil {
		if n, err := strconv.Atoi(values.Get(KeyPageSize)); err == nil {
			_ = pages.SetPageSize(n)
		}
		if n, err := strconv.Atoi(values.Get(KeyPage)); err == nil {
			pages.SetPage(n)
		}
		c.search.restore(values.Get(KeySearch))
		filters.Decode(values)
	}
	c.lastQuery = c.encodeLocked()
	return c, nil
}

type snapshot struct {
	query  string
	params map[string]string
	subs   []func(map[string]string)
}

// mutate applies fn under the lock and publishes the new state if the
// canonical query changed.
func (c *Composer) mutate(fn func() error) error {
	c.mu.Lock()
	if err := fn(); err != nil {
		c.mu.Unlock()
		return err
	}
	snap, changed := c.snapshotLocked()
	c.mu.Unlock()
	if changed {
		c.publish(snap, c.opts.History)
	}
	return nil
}

func (c *Composer) snapshotLocked() (snapshot, bool) {
	if c.closed {
		return snapshot{}, false
	}
	q := c.encodeLocked()
	if q == c.lastQuery {
		return snapshot{}, false
	}
	c.lastQuery = q
	snap := snapshot{query: q, params: c.paramsLocked()}
	for _, id := range slices.Sorted(maps.Keys(c.subs)) {
		snap.subs = append(snap.subs, c.subs[id])
	}
	return snap, true
}

func (c *Composer) publish(s snapshot, mode HistoryMode) {
	if w := c.opts.Writer; w != nil {
		if mode == Push {
			w.PushQuery(s.query)
		} else {
			w.ReplaceQuery(s.query)
		}
	}
	for _, fn := range s.subs {
		fn(maps.Clone(s.params))
	}
}

func (c *Composer) searchCommitted(string) {
	_ = c.mutate(func() error {
		if !c.opts.KeepPageOnChange {
			c.pages.SetPage(1)
		}
		return nil
	})
}

func (c *Composer) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages.Page()
}

func (c *Composer) PageSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages.PageSize()
}

func (c *Composer) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages.TotalPages()
}

func (c *Composer) TotalCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages.TotalCount()
}

// Offset is the row offset of the current page.
func (c *Composer) Offset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages.Offset()
}

func (c *Composer) SetPage(n int) {
	_ = c.mutate(func() error { c.pages.SetPage(n); return nil })
}

func (c *Composer) NextPage() {
	_ = c.mutate(func() error { c.pages.NextPage(); return nil })
}

func (c *Composer) PreviousPage() {
	_ = c.mutate(func() error { c.pages.PreviousPage(); return nil })
}

func (c *Composer) SetPageSize(n int) error {
	return c.mutate(func() error { return c.pages.SetPageSize(n) })
}

func (c *Composer) SetTotalCount(n int) {
	_ = c.mutate(func() error { c.pages.SetTotalCount(n); return nil })
}

// SetSearch records an edit; the change is committed after the debounce delay.
func (c *Composer) SetSearch(text string) {
	c.search.SetText(text)
}

// FlushSearch commits a pending search edit now.
func (c *Composer) FlushSearch() {
	c.search.Flush()
}

func (c *Composer) SearchText() string      { return c.search.Text() }
func (c *Composer) DebouncedSearch() string { return c.search.Debounced() }
func (c *Composer) SearchPhase() Phase      { return c.search.Phase() }

func (c *Composer) SetFilter(key, value string) error {
	return c.mutate(func() error {
		if err := c.filters.Set(key, value); err != nil {
			return err
		}
		c.filterChangedLocked()
		return nil
	})
}

func (c *Composer) SetFilters(values map[string]string) error {
	return c.mutate(func() error {
		if err := c.filters.SetMany(values); err != nil {
			return err
		}
		c.filterChangedLocked()
		return nil
	})
}

func (c *Composer) ClearFilter(key string) error {
	return c.mutate(func() error {
		if err := c.filters.Clear(key); err != nil {
			return err
		}
		c.filterChangedLocked()
		return nil
	})
}

func (c *Composer) ClearFilters() {
	_ = c.mutate(func() error {
		c.filters.ClearAll()
		c.filterChangedLocked()
		return nil
	})
}

func (c *Composer) filterChangedLocked() {
	if !c.opts.KeepPageOnChange {
		c.pages.SetPage(1)
	}
}

func (c *Composer) Filter(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters.Get(key)
}

func (c *Composer) IsFilterActive(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters.IsActive(key)
}

func (c *Composer) ActiveFilterCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters.ActiveCount()
}

// HasActiveQuery reports whether a search or any filter is in effect, or the
// view is past the first page.
func (c *Composer) HasActiveQuery() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search.Debounced() != "" || c.filters.ActiveCount() > 0 || c.pages.Page() > 1
}

// ResetAll returns every sub-state to its default and cancels a pending search.
func (c *Composer) ResetAll() {
	_ = c.mutate(func() error {
		c.search.Reset()
		c.filters.ClearAll()
		c.pages.Reset()
		return nil
	})
}

// Params is the API parameter mapping: page and page_size always, search
// when not empty, and the active filters under their API names.
func (c *Composer) Params() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paramsLocked()
}

func (c *Composer) paramsLocked() map[string]string {
	out := c.filters.APIParams()
	out[KeyPage] = strconv.Itoa(c.pages.Page())
	out[KeyPageSize] = strconv.Itoa(c.pages.PageSize())
	if s := c.search.Debounced(); s != "" {
		out[KeySearch] = s
	}
	return out
}

// Values is the URL form of the state; defaults are left out.
func (c *Composer) Values() url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valuesLocked()
}

func (c *Composer) valuesLocked() url.Values {
	v := url.Values{}
	if p := c.pages.Page(); p != 1 {
		v.Set(KeyPage, strconv.Itoa(p))
	}
	if s := c.pages.PageSize(); s != c.pages.DefaultSize() {
		v.Set(KeyPageSize, strconv.Itoa(s))
	}
	if s := c.search.Debounced(); s != "" {
		v.Set(KeySearch, s)
	}
	c.filters.Encode(v)
	return v
}

// Encode is the canonical query string, "" when everything is at its default.
func (c *Composer) Encode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encodeLocked()
}

func (c *Composer) encodeLocked() string {
	return c.valuesLocked().Encode()
}

// Subscribe registers fn to receive the params after every committed change.
// The returned func unregisters it.
func (c *Composer) Subscribe(fn func(map[string]string)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Close cancels the pending search and stops notifications.
func (c *Composer) Close() {
	c.search.Close()
	c.mu.Lock()
	c.closed = true
	c.subs = map[int]func(map[string]string){}
	c.mu.Unlock()
}
