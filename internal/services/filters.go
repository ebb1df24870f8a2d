package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"conti/internal/core"
	"conti/internal/query"
	"conti/internal/storage"
)

// Filter keys of the transaction list.
const (
	FilterType      = "type"
	FilterCategory  = "category"
	FilterStatus    = "status"
	FilterVerified  = "verified"
	FilterDateFrom  = "date_from"
	FilterDateTo    = "date_to"
	FilterMinAmount = "min_amount"
	FilterGroup     = "group"
	FilterAccount   = "account"
	FilterPaidBy    = "paid_by"

	paramMinAmountCents = "min_amount_cents"
)

// TransactionFilters declares the filters of the ledger list. The minimum
// amount is kept as a decimal in the URL and sent as cents.
func TransactionFilters() []query.FilterDef {
	return []query.FilterDef{
		{Key: FilterType, Kind: query.String},
		{Key: FilterCategory, Kind: query.String},
		{Key: FilterStatus, Kind: query.String},
		{Key: FilterVerified, Kind: query.Bool},
		{Key: FilterDateFrom, Kind: query.Date},
		{Key: FilterDateTo, Kind: query.Date},
		{Key: FilterMinAmount, Kind: query.Decimal, ParamName: paramMinAmountCents, Transform: query.CentsTransform},
		{Key: FilterGroup, Kind: query.String},
		{Key: FilterAccount, Kind: query.String},
	}
}

// ExpenseFilters declares the filters of a group's expense list.
func ExpenseFilters() []query.FilterDef {
	return []query.FilterDef{
		{Key: FilterStatus, Kind: query.String},
		{Key: FilterPaidBy, Kind: query.String},
	}
}

// pageWindow turns page/page_size parameters into limit and offset.
func pageWindow(params map[string]string) (limit, offset int) {
	page, _ := strconv.Atoi(params[query.KeyPage])
	size, _ := strconv.Atoi(params[query.KeyPageSize])
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = query.DefaultPageSize
	}
	return size, (page - 1) * size
}

// TransactionQueryFromParams maps composer API parameters onto a storage query.
func TransactionQueryFromParams(userID string, params map[string]string) (storage.TransactionQuery, error) {
	q := storage.TransactionQuery{
		UserID:    userID,
		Category:  params[FilterCategory],
		GroupID:   params[FilterGroup],
		AccountID: params[FilterAccount],
		Search:    strings.TrimSpace(params[query.KeySearch]),
	}
	q.Limit, q.Offset = pageWindow(params)

	if v := params[FilterType]; v != "" {
		t := core.TransactionType(v)
		if !t.Valid() {
			return q, inputErr(FilterType, core.ErrInvalidTxType)
		}
		q.Type = t
	}
	if v := params[FilterStatus]; v != "" {
		s := core.TransactionStatus(v)
		if !s.Valid() {
			return q, inputErr(FilterStatus, core.ErrInvalidStatus)
		}
		q.Status = s
	}
	if v := params[FilterVerified]; v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, inputErr(FilterVerified, err)
		}
		q.Verified = &b
	}
	for key, dst := range map[string]**time.Time{FilterDateFrom: &q.DateFrom, FilterDateTo: &q.DateTo} {
		if v := params[key]; v != "" {
			t, err := time.Parse(time.DateOnly, v)
			if err != nil {
				return q, inputErr(key, err)
			}
			*dst = &t
		}
	}
	if v := params[paramMinAmountCents]; v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return q, inputErr(FilterMinAmount, fmt.Errorf("not a cent amount: %w", err))
		}
		q.MinAmountCents = &n
	}
	return q, nil
}

// ExpenseQueryFromParams maps composer API parameters onto a storage query.
func ExpenseQueryFromParams(groupID string, params map[string]string) (storage.ExpenseQuery, error) {
	q := storage.ExpenseQuery{
		GroupID: groupID,
		PaidBy:  params[FilterPaidBy],
		Search:  strings.TrimSpace(params[query.KeySearch]),
	}
	q.Limit, q.Offset = pageWindow(params)
	if v := params[FilterStatus]; v != "" {
		s := core.ExpenseStatus(v)
		if !s.Valid() {
			return q, inputErr(FilterStatus, core.ErrInvalidStatus)
		}
		q.Status = s
	}
	return q, nil
}
