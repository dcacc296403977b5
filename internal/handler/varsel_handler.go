package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/audit"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/domain"
)

// HeaderNavIdent carries the ident of the NAV employee making the request.
const HeaderNavIdent = "Nav-Ident"

type VarselService interface {
	CreateForStilling(ctx context.Context, stillingID string, fnr []string, mal string, navIdent string) ([]domain.Varsel, error)
	ListBySource(ctx context.Context, sourceID string) ([]domain.Varsel, error)
	ListByRecipient(ctx context.Context, fnr string) ([]domain.Varsel, error)
}

type VarselHandler struct {
	service VarselService
	audit   audit.Logger
}

func NewVarselHandler(service VarselService, auditLogger audit.Logger) (*VarselHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("varsel service is required")
	}
	if auditLogger == nil {
		return nil, fmt.Errorf("audit logger is required")
	}
	return &VarselHandler{service: service, audit: auditLogger}, nil
}

func RegisterVarselRoutes(router fiber.Router, service VarselService, auditLogger audit.Logger) error {
	h, err := NewVarselHandler(service, auditLogger)
	if err != nil {
		return err
	}

	api := router.Group("/api/varsler")
	api.Post("/stilling/:stillingId", h.CreateForStilling)
	api.Get("/stilling/:stillingId", h.ListForStilling)
	api.Get("/rekrutteringstreff/:treffId", h.ListForRekrutteringstreff)
	api.Post("/query", h.QueryByFnr)

	return nil
}

type createVarselRequest struct {
	Fnr []string `json:"fnr"`
	Mal string   `json:"mal"`
}

type queryRequest struct {
	Fnr string `json:"fnr"`
}

type varselResponse struct {
	VarselID           string    `json:"varselId"`
	SourceID           string    `json:"sourceId"`
	MottakerFnr        string    `json:"mottakerFnr"`
	AvsenderNavident   string    `json:"avsenderNavident"`
	Mal                string    `json:"mal"`
	Opprettet          time.Time `json:"opprettet"`
	MinsideStatus      string    `json:"minsideStatus"`
	EksternStatus      string    `json:"eksternStatus"`
	EksternFeilmelding string    `json:"eksternFeilmelding,omitempty"`
}

func (h *VarselHandler) CreateForStilling(c *fiber.Ctx) error {
	navIdent, err := requireNavIdent(c)
	if err != nil {
		return err
	}

	var req createVarselRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	stillingID := strings.TrimSpace(c.Params("stillingId"))
	varsler, err := h.service.CreateForStilling(c.Context(), stillingID, req.Fnr, strings.TrimSpace(req.Mal), navIdent)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(toVarselResponses(varsler))
}

func (h *VarselHandler) ListForStilling(c *fiber.Ctx) error {
	return h.listBySource(c, c.Params("stillingId"))
}

func (h *VarselHandler) ListForRekrutteringstreff(c *fiber.Ctx) error {
	return h.listBySource(c, c.Params("treffId"))
}

func (h *VarselHandler) listBySource(c *fiber.Ctx, sourceID string) error {
	varsler, err := h.service.ListBySource(c.Context(), strings.TrimSpace(sourceID))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(toVarselResponses(varsler))
}

// QueryByFnr returns every varsel sent to one person. Each lookup is audited.
func (h *VarselHandler) QueryByFnr(c *fiber.Ctx) error {
	navIdent, err := requireNavIdent(c)
	if err != nil {
		return err
	}

	var req queryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	fnr := strings.TrimSpace(req.Fnr)
	if fnr == "" {
		return fmt.Errorf("%w: fnr is required", domain.ErrValidation)
	}

	h.audit.Lookup(navIdent, fnr, c.Path())

	varsler, err := h.service.ListByRecipient(c.Context(), fnr)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(toVarselResponses(varsler))
}

func requireNavIdent(c *fiber.Ctx) (string, error) {
	navIdent := strings.TrimSpace(c.Get(HeaderNavIdent))
	if navIdent == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "missing "+HeaderNavIdent+" header")
	}
	return navIdent, nil
}

func toVarselResponses(varsler []domain.Varsel) []varselResponse {
	responses := make([]varselResponse, 0, len(varsler))
	for _, v := range varsler {
		responses = append(responses, varselResponse{
			VarselID:           v.VarselID,
			SourceID:           v.SourceID,
			MottakerFnr:        v.Recipient,
			AvsenderNavident:   v.Sender,
			Mal:                v.Tag,
			Opprettet:          v.CreatedAt,
			MinsideStatus:      string(v.PublicLifecycleStatus()),
			EksternStatus:      string(v.PublicChannelStatus()),
			EksternFeilmelding: v.FailureReason,
		})
	}
	return responses
}
