package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addVarselSentRequiresChannel() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_varsel_sent_requires_channel",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`ALTER TABLE varsel ADD CONSTRAINT varsel_sent_requires_channel
				CHECK (channel_status IS DISTINCT FROM 'SENDT' OR channel IS NOT NULL)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`ALTER TABLE varsel DROP CONSTRAINT IF EXISTS varsel_sent_requires_channel`).Error
		},
	}
}
