// Package store implements the engine's persistence contracts with gorm.
package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/cppla/punchclock/models"
	"github.com/cppla/punchclock/services"
)

// Models lists every table the service owns, for migration.
func Models() []interface{} {
	return []interface{}{&models.User{}, &models.Punch{}, &models.AuditLog{}}
}

// Repositories groups the gorm-backed stores sharing one connection.
type Repositories struct {
	Punches *PunchRepository
	Users   *UserRepository
	Audit   *AuditRepository
	Tx      *Transactor
}

// New builds the repositories over db.
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Punches: NewPunchRepository(db),
		Users:   NewUserRepository(db),
		Audit:   NewAuditRepository(db),
		Tx:      &Transactor{db: db},
	}
}

// Transactor runs engine callbacks inside gorm transactions.
type Transactor struct {
	db *gorm.DB
}

// NewTransactor returns a transactor over db.
func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTransaction commits when fn returns nil and rolls back otherwise.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(services.PunchStore, services.AuditSink) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewPunchRepository(tx), NewAuditRepository(tx))
	})
}
