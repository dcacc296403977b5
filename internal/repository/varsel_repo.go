package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTransactionRequired is returned by operations whose row lock is only
// meaningful inside Transaction.
var ErrTransactionRequired = errors.New("operation requires a transaction")

type CreateParams struct {
	Tag         string
	SourceID    string
	Recipients  []string
	Sender      string
	MergeFields []string
}

type VarselRepository interface {
	Create(ctx context.Context, params CreateParams) ([]domain.Varsel, error)
	ClaimNextUnsent(ctx context.Context) (*domain.Varsel, error)
	MarkDispatched(ctx context.Context, v *domain.Varsel) (*domain.Varsel, error)
	ApplyStatusUpdate(ctx context.Context, update domain.StatusUpdate) (*domain.Varsel, error)
	ListBySource(ctx context.Context, sourceID string) ([]domain.Varsel, error)
	ListByRecipient(ctx context.Context, recipient string) ([]domain.Varsel, error)
	// Transaction runs fn with a repository bound to one database transaction.
	// Row locks taken inside fn are held until fn returns.
	Transaction(ctx context.Context, fn func(repo VarselRepository) error) error
}

type GormVarselRepo struct {
	db   *gorm.DB
	inTx bool

	now   func() time.Time
	newID func() (uuid.UUID, error)
}

func NewGormVarselRepo(db *gorm.DB) *GormVarselRepo {
	return &GormVarselRepo{
		db:    db,
		now:   domain.Now,
		newID: uuid.NewV7,
	}
}

func (r *GormVarselRepo) Transaction(ctx context.Context, fn func(repo VarselRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.bind(tx))
	})
}

func (r *GormVarselRepo) Create(ctx context.Context, params CreateParams) ([]domain.Varsel, error) {
	if strings.TrimSpace(params.Tag) == "" {
		return nil, fmt.Errorf("%w: tag is required", domain.ErrValidation)
	}
	if strings.TrimSpace(params.SourceID) == "" {
		return nil, fmt.Errorf("%w: source id is required", domain.ErrValidation)
	}
	if len(params.Recipients) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", domain.ErrValidation)
	}

	sender := strings.TrimSpace(params.Sender)
	if sender == "" {
		sender = domain.SystemSender
	}
	mergeFields, err := mergeFieldsJSON(params.MergeFields)
	if err != nil {
		return nil, fmt.Errorf("encode merge fields: %w", err)
	}

	createdAt := r.now()
	models := make([]VarselModel, 0, len(params.Recipients))
	for _, recipient := range params.Recipients {
		if strings.TrimSpace(recipient) == "" {
			return nil, fmt.Errorf("%w: recipient is empty", domain.ErrValidation)
		}
		id, err := r.newID()
		if err != nil {
			return nil, fmt.Errorf("generate varsel id: %w", err)
		}
		models = append(models, VarselModel{
			VarselID:    id.String(),
			SourceID:    params.SourceID,
			Recipient:   recipient,
			Sender:      sender,
			Tag:         params.Tag,
			MergeFields: mergeFields,
			CreatedAt:   createdAt,
		})
	}

	err = r.write(ctx, func(tx *gorm.DB) error {
		return tx.Create(&models).Error
	})
	if err != nil {
		return nil, err
	}

	return modelsToDomain(models)
}

func (r *GormVarselRepo) ClaimNextUnsent(ctx context.Context) (*domain.Varsel, error) {
	if !r.inTx {
		return nil, ErrTransactionRequired
	}

	var model VarselModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("dispatched = ?", false).
		Order("id ASC").
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return varselModelToDomain(&model)
}

func (r *GormVarselRepo) MarkDispatched(ctx context.Context, v *domain.Varsel) (*domain.Varsel, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: varsel is nil", domain.ErrValidation)
	}

	err := r.write(ctx, func(tx *gorm.DB) error {
		result := tx.Model(&VarselModel{}).
			Where("id = ? AND dispatched = ?", v.ID, false).
			Update("dispatched", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: varsel %s is already dispatched or missing", domain.ErrConflict, v.VarselID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dispatched := *v
	dispatched.Dispatched = true
	return &dispatched, nil
}

// ApplyStatusUpdate merges update into the varsel it targets. It returns nil
// without error when no varsel has the update's id.
func (r *GormVarselRepo) ApplyStatusUpdate(ctx context.Context, update domain.StatusUpdate) (*domain.Varsel, error) {
	if update == nil {
		return nil, fmt.Errorf("%w: status update is nil", domain.ErrValidation)
	}

	var applied *domain.Varsel
	err := r.write(ctx, func(tx *gorm.DB) error {
		var model VarselModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("varsel_id = ?", update.TargetVarselID()).
			Take(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		v, err := varselModelToDomain(&model)
		if err != nil {
			return err
		}
		if !v.Apply(update) {
			applied = v
			return nil
		}
		if err := v.Validate(); err != nil {
			return err
		}

		err = tx.Model(&VarselModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]any{
				"lifecycle_status": nullable(v.LifecycleStatus.String()),
				"channel_status":   nullable(v.ChannelStatus.String()),
				"channel":          nullable(v.Channel.String()),
				"failure_reason":   nullable(v.FailureReason),
			}).Error
		if err != nil {
			return err
		}
		applied = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func (r *GormVarselRepo) ListBySource(ctx context.Context, sourceID string) ([]domain.Varsel, error) {
	return r.list(ctx, "source_id = ?", sourceID)
}

func (r *GormVarselRepo) ListByRecipient(ctx context.Context, recipient string) ([]domain.Varsel, error) {
	return r.list(ctx, "recipient = ?", recipient)
}

func (r *GormVarselRepo) list(ctx context.Context, query string, arg string) ([]domain.Varsel, error) {
	var models []VarselModel
	err := r.db.WithContext(ctx).
		Where(query, arg).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return modelsToDomain(models)
}

func modelsToDomain(models []VarselModel) ([]domain.Varsel, error) {
	varsler := make([]domain.Varsel, 0, len(models))
	for i := range models {
		v, err := varselModelToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		varsler = append(varsler, *v)
	}
	return varsler, nil
}

func (r *GormVarselRepo) write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.inTx {
		return fn(r.db.WithContext(ctx))
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *GormVarselRepo) bind(tx *gorm.DB) *GormVarselRepo {
	return &GormVarselRepo{
		db:    tx,
		inTx:  true,
		now:   r.now,
		newID: r.newID,
	}
}
