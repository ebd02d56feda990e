package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockForUpdate applies a SELECT ... FOR UPDATE clause on the query. SQLite
// (in-memory test databases) rejects the syntax and serializes writers on its
// own, so the clause is only added for other dialects.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
