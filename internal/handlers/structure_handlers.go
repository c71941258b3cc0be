package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"coachledger/internal/models"
	"coachledger/internal/services"
)

type StructureHandler struct {
	structures *services.StructureService
}

func NewStructureHandler(structures *services.StructureService) *StructureHandler {
	return &StructureHandler{structures: structures}
}

type structureRequest struct {
	Name              string                   `json:"name" validate:"required"`
	BaseAmount        float64                  `json:"base_amount" validate:"gte=0"`
	Currency          string                   `json:"currency"`
	BillingCycle      models.BillingCycle      `json:"billing_cycle" validate:"omitempty,oneof=onetime periodic installment"`
	RecurringInterval *string                  `json:"recurring_interval"`
	LateFineRate      float64                  `json:"late_fine_rate" validate:"gte=0"`
	TaxType           models.TaxType           `json:"tax_type" validate:"omitempty,oneof=NONE GST_EXCLUSIVE GST_INCLUSIVE"`
	GSTRate           float64                  `json:"gst_rate" validate:"gte=0"`
	CessRate          float64                  `json:"cess_rate" validate:"gte=0"`
	SupplyType        models.SupplyType        `json:"supply_type" validate:"omitempty,oneof=INTRA INTER"`
	InstallmentPlan   []models.InstallmentItem `json:"installment_plan"`
}

func (r structureRequest) toModel() *models.FeeStructure {
	structure := &models.FeeStructure{
		Name:              r.Name,
		BaseAmount:        r.BaseAmount,
		Currency:          r.Currency,
		BillingCycle:      r.BillingCycle,
		RecurringInterval: r.RecurringInterval,
		LateFineRate:      r.LateFineRate,
		TaxType:           r.TaxType,
		GSTRate:           r.GSTRate,
		CessRate:          r.CessRate,
		SupplyType:        r.SupplyType,
		InstallmentPlan:   r.InstallmentPlan,
	}
	if structure.Currency == "" {
		structure.Currency = "INR"
	}
	if structure.BillingCycle == "" {
		structure.BillingCycle = models.BillingCycleOneTime
	}
	if structure.TaxType == "" {
		structure.TaxType = models.TaxTypeNone
	}
	if structure.SupplyType == "" {
		structure.SupplyType = models.SupplyTypeIntra
	}
	return structure
}

// CreateStructure handles POST /structures
func (h *StructureHandler) CreateStructure(c echo.Context) error {
	var req structureRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	structure := req.toModel()
	if err := h.structures.CreateStructure(tenantID(c), structure, actor(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, structure)
}

// SupersedeStructure handles POST /structures/:id/supersede
func (h *StructureHandler) SupersedeStructure(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req structureRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	replacement, err := h.structures.SupersedeStructure(tenantID(c), id, req.toModel(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, replacement)
}

type assignRequest struct {
	StructureID    uint     `json:"structure_id" validate:"required"`
	MemberID       uint     `json:"member_id" validate:"required"`
	OverrideAmount *float64 `json:"override_amount"`
	Discount       float64  `json:"discount" validate:"gte=0"`
	Scholarship    float64  `json:"scholarship" validate:"gte=0"`
}

// Assign handles POST /assignments
func (h *StructureHandler) Assign(c echo.Context) error {
	var req assignRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	assignment := &models.FeeAssignment{
		StructureID:    req.StructureID,
		MemberID:       req.MemberID,
		OverrideAmount: req.OverrideAmount,
		Discount:       req.Discount,
		Scholarship:    req.Scholarship,
	}
	if err := h.structures.Assign(tenantID(c), assignment, actor(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, assignment)
}

// PauseAssignment handles POST /assignments/:id/pause
func (h *StructureHandler) PauseAssignment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.structures.PauseAssignment(tenantID(c), id, actor(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ResumeAssignment handles POST /assignments/:id/resume
func (h *StructureHandler) ResumeAssignment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.structures.ResumeAssignment(tenantID(c), id, actor(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}
