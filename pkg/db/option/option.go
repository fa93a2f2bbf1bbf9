// Package option holds composable gorm query modifiers shared by repositories.
package option

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/vaultline/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type Operator string

const (
	EQ  Operator = "="
	GTE Operator = ">="
	LTE Operator = "<="
	GT  Operator = ">"
	LT  Operator = "<"
	IN  Operator = "IN"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a single WHERE clause. Field names are expected to come from code, never from user input.
func ApplyOperator(c Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(c.Field)
		if field == "" {
			return db
		}
		if c.Operator == IN {
			return db.Where(fmt.Sprintf("%s IN ?", field), c.Value)
		}
		return db.Where(fmt.Sprintf("%s %s ?", field, c.Operator), c.Value)
	})
}

func OrderBy(clause string) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order(clause)
	})
}

// ApplyPagination applies keyset pagination ordered by (created_at desc, id desc).
// One extra row is fetched so callers can detect has_more.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = 50
		}
		if token := strings.TrimSpace(page.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil && cursor != nil {
				createdAt, parseErr := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
				if parseErr == nil {
					var lastID any = cursor.ID
					if parsed, err := strconv.ParseInt(cursor.ID, 10, 64); err == nil {
						lastID = parsed
					}
					db = db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, lastID)
				}
			}
		}
		return db.Limit(size + 1)
	})
}
