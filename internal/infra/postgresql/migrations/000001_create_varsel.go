package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/repository"
	"gorm.io/gorm"
)

func createVarselTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_varsel",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.VarselModel{}); err != nil {
				return err
			}
			// Keeps the dispatcher's claim query on a small index as the table grows.
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_varsel_unsent ON varsel (id) WHERE dispatched = false`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.VarselModel{})
		},
	}
}
