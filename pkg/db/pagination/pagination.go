// Package pagination implements keyset paging over snowflake-ordered tables.
// Rows are listed newest first and a page token names the last id returned.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

// Pagination is bound from the query string of list endpoints.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Limit clamps the requested page size into [1, max], using fallback when unset.
func (p Pagination) Limit(fallback, max int) int {
	switch {
	case p.PageSize <= 0:
		return fallback
	case p.PageSize > max:
		return max
	default:
		return p.PageSize
	}
}

// Before decodes the page token into the id the next page must start below.
// An empty token yields nil.
func (p Pagination) Before() (*snowflake.ID, error) {
	token := strings.TrimSpace(p.PageToken)
	if token == "" {
		return nil, nil
	}
	id, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

type cursor struct {
	ID string `json:"id"`
}

func EncodeToken(id snowflake.ID) string {
	b, _ := json.Marshal(cursor{ID: id.String()})
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeToken(token string) (snowflake.ID, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, ErrInvalidPageToken
	}
	var c cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return 0, ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(c.ID))
	if err != nil || id <= 0 {
		return 0, ErrInvalidPageToken
	}
	return id, nil
}

// Trim expects items fetched with limit+1 rows. It cuts the extra row and
// reports whether more rows exist, with a token only when they do.
func Trim[T any](items []*T, limit int, id func(*T) snowflake.ID) ([]*T, PageInfo) {
	if limit <= 0 || len(items) <= limit {
		return items, PageInfo{}
	}
	items = items[:limit]
	return items, PageInfo{
		NextPageToken: EncodeToken(id(items[len(items)-1])),
		HasMore:       true,
	}
}
