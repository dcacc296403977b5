package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/content"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/domain"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/observability"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/repository"
	"go.uber.org/zap"
)

// CreateRequest asks for one varsel per recipient, all with the same content.
type CreateRequest struct {
	Tag         content.Tag
	SourceID    string
	Recipients  []string
	Sender      string
	MergeFields []string
}

type VarselService struct {
	repo    repository.VarselRepository
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewVarselService(repo repository.VarselRepository, logger *zap.Logger, metrics *observability.Metrics) *VarselService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VarselService{repo: repo, logger: logger, metrics: metrics}
}

// Create stores the requested varsler in one insert. The tag must be known to
// the content registry; recipients are trimmed and deduplicated in order.
func (s *VarselService) Create(ctx context.Context, req CreateRequest) ([]domain.Varsel, error) {
	variant, ok := content.Lookup(req.Tag.String())
	if !ok {
		return nil, fmt.Errorf("%w: unknown mal %q", domain.ErrValidation, req.Tag)
	}
	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		return nil, fmt.Errorf("%w: source id is required", domain.ErrValidation)
	}
	recipients := normalizeRecipients(req.Recipients)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: at least one fnr is required", domain.ErrValidation)
	}
	if variant.Parameterized() && len(req.MergeFields) == 0 {
		return nil, fmt.Errorf("%w: mal %s requires merge fields", domain.ErrValidation, req.Tag)
	}

	varsler, err := s.repo.Create(ctx, repository.CreateParams{
		Tag:         variant.Tag().String(),
		SourceID:    sourceID,
		Recipients:  recipients,
		Sender:      req.Sender,
		MergeFields: req.MergeFields,
	})
	if err != nil {
		return nil, fmt.Errorf("create varsler for %s: %w", sourceID, err)
	}

	s.metrics.AddVarslerCreated(variant.Tag().String(), len(varsler))
	s.logger.Info("varsler created",
		zap.String("mal", variant.Tag().String()),
		zap.String("sourceId", sourceID),
		zap.Int("count", len(varsler)),
	)
	return varsler, nil
}

// CreateForStilling is the entry point for varsler sent from a stilling by a
// NAV employee. Only stilling-sourced tags are accepted.
func (s *VarselService) CreateForStilling(ctx context.Context, stillingID string, fnr []string, mal string, navIdent string) ([]domain.Varsel, error) {
	variant, ok := content.Lookup(mal)
	if !ok {
		return nil, fmt.Errorf("%w: unknown mal %q", domain.ErrValidation, mal)
	}
	if variant.Source() != content.SourceStilling {
		return nil, fmt.Errorf("%w: mal %s cannot be sent for a stilling", domain.ErrValidation, mal)
	}
	if strings.TrimSpace(navIdent) == "" {
		return nil, fmt.Errorf("%w: nav ident is required", domain.ErrValidation)
	}

	return s.Create(ctx, CreateRequest{
		Tag:        variant.Tag(),
		SourceID:   stillingID,
		Recipients: fnr,
		Sender:     strings.TrimSpace(navIdent),
	})
}

func (s *VarselService) ListBySource(ctx context.Context, sourceID string) ([]domain.Varsel, error) {
	if strings.TrimSpace(sourceID) == "" {
		return nil, fmt.Errorf("%w: source id is required", domain.ErrValidation)
	}
	varsler, err := s.repo.ListBySource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list varsler for %s: %w", sourceID, err)
	}
	return varsler, nil
}

func (s *VarselService) ListByRecipient(ctx context.Context, fnr string) ([]domain.Varsel, error) {
	fnr = strings.TrimSpace(fnr)
	if fnr == "" {
		return nil, fmt.Errorf("%w: fnr is required", domain.ErrValidation)
	}
	varsler, err := s.repo.ListByRecipient(ctx, fnr)
	if err != nil {
		return nil, fmt.Errorf("list varsler for recipient: %w", err)
	}
	return varsler, nil
}

func normalizeRecipients(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
