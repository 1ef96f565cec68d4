package models

import (
	"encoding/base64"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

type PageInfo struct {
	EndCursor   string `json:"endCursor,omitempty"`
	HasNextPage bool   `json:"hasNextPage"`
}

type PageRequest struct {
	Limit int    `form:"limit"`
	After string `form:"after"`
}

func (p PageRequest) limit() int {
	if p.Limit <= 0 {
		return defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		return maxPageLimit
	}
	return p.Limit
}

// EncodeCompositeCursor encodes (created_at, id) for keyset pagination.
func EncodeCompositeCursor(createdAt time.Time, id string) string {
	cursor := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}

func DecodeCompositeCursor(cursor string) (time.Time, string, bool) {
	if cursor == "" {
		return time.Time{}, "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", false
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", false
	}
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", false
	}
	return t, parts[1], true
}

// paginate applies newest-first keyset paging on created_at, id.
func paginate(dbCtx *gorm.DB, page PageRequest) *gorm.DB {
	if createdAt, id, ok := DecodeCompositeCursor(page.After); ok {
		dbCtx = dbCtx.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}
	return dbCtx.Order("created_at DESC").Order("id DESC").Limit(page.limit() + 1)
}

// pageOf trims the extra probe row and builds the page info.
func pageOf[T any](rows []*T, page PageRequest, cursorOf func(*T) string) ([]*T, PageInfo) {
	info := PageInfo{}
	if len(rows) > page.limit() {
		rows = rows[:page.limit()]
		info.HasNextPage = true
	}
	if len(rows) > 0 {
		info.EndCursor = cursorOf(rows[len(rows)-1])
	}
	return rows, info
}
