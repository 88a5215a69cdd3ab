package database

import "gorm.io/gorm"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Paginate returns a GORM scope applying a bounded limit/offset.
func Paginate(limit, offset int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		limit, offset = ClampPage(limit, offset)
		return db.Limit(limit).Offset(offset)
	}
}

// ClampPage normalizes user supplied paging values.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// WhereIf adds the condition only when value is not the zero value.
func WhereIf[T comparable](column string, value T) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		var zero T
		if value == zero {
			return db
		}
		return db.Where(column+" = ?", value)
	}
}
