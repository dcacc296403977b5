package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/domain"
	"gorm.io/datatypes"
)

// VarselModel is the persistence model for the varsel table.
type VarselModel struct {
	ID              int64          `gorm:"primaryKey;autoIncrement"`
	VarselID        string         `gorm:"type:uuid;not null;uniqueIndex:idx_varsel_varsel_id"`
	SourceID        string         `gorm:"type:varchar(255);not null;index:idx_varsel_source_id"`
	Recipient       string         `gorm:"type:varchar(255);not null;index:idx_varsel_recipient"`
	Sender          string         `gorm:"type:varchar(255);not null"`
	Tag             string         `gorm:"type:varchar(64);not null"`
	MergeFields     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt       time.Time      `gorm:"type:timestamp;not null"`
	Dispatched      bool           `gorm:"not null"`
	LifecycleStatus *string        `gorm:"type:varchar(20)"`
	ChannelStatus   *string        `gorm:"type:varchar(20)"`
	Channel         *string        `gorm:"type:varchar(10)"`
	FailureReason   *string        `gorm:"type:text"`
}

func (VarselModel) TableName() string {
	return "varsel"
}

func varselModelToDomain(m *VarselModel) (*domain.Varsel, error) {
	if m == nil {
		return nil, nil
	}

	var fields []string
	if len(m.MergeFields) > 0 {
		if err := json.Unmarshal(m.MergeFields, &fields); err != nil {
			return nil, fmt.Errorf("varsel %s has unreadable merge fields: %w", m.VarselID, err)
		}
	}

	return &domain.Varsel{
		ID:              m.ID,
		VarselID:        m.VarselID,
		SourceID:        m.SourceID,
		Recipient:       m.Recipient,
		Sender:          m.Sender,
		Tag:             m.Tag,
		MergeFields:     fields,
		CreatedAt:       domain.LocalTime(m.CreatedAt),
		Dispatched:      m.Dispatched,
		LifecycleStatus: domain.LifecycleStatus(deref(m.LifecycleStatus)),
		ChannelStatus:   domain.ChannelStatus(deref(m.ChannelStatus)),
		Channel:         domain.Channel(deref(m.Channel)),
		FailureReason:   deref(m.FailureReason),
	}, nil
}

func mergeFieldsJSON(fields []string) (datatypes.JSON, error) {
	if fields == nil {
		fields = []string{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
