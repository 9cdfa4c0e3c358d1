package repository

import (
	"context"

	domainRepo "github.com/sangkips/quotation-api/internal/domain/repository"
	"gorm.io/gorm"
)

// OwnerScope returns a GORM scope that filters by the owner carried in ctx.
// Admin contexts see every record; a context with no owner sees nothing.
func OwnerScope(ctx context.Context) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if domainRepo.SkipsOwnerScope(ctx) {
			return db
		}
		ownerID, ok := domainRepo.OwnerFromContext(ctx)
		if !ok {
			return db.Where("1 = 0")
		}
		return db.Where("user_id = ?", ownerID)
	}
}
