package database

import (
	"gorm.io/gorm"
)

// Paginate applies 1-based pagination to a GORM query. A non-positive page
// size leaves the query unbounded.
func Paginate(page, pageSize int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 || pageSize < 1 {
			return db
		}
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}
