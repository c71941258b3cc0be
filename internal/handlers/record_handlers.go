package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"coachledger/internal/middleware"
	"coachledger/internal/models"
	"coachledger/internal/services"
)

type RecordHandler struct {
	ledger     *services.LedgerService
	structures *services.StructureService
}

func NewRecordHandler(ledger *services.LedgerService, structures *services.StructureService) *RecordHandler {
	return &RecordHandler{ledger: ledger, structures: structures}
}

// ListRecords handles GET /records?member_id=&status=
func (h *RecordHandler) ListRecords(c echo.Context) error {
	var memberID uint
	if v := c.QueryParam("member_id"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid member_id")
		}
		memberID = uint(parsed)
	}
	status := models.FeeRecordStatus(c.QueryParam("status"))

	// Member-role actors only ever see their own records
	if a := actor(c); a.Role == middleware.RoleMember {
		memberID = a.ID
	}

	records, err := h.ledger.ListRecords(tenantID(c), memberID, status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

// GetRecord handles GET /records/:id
func (h *RecordHandler) GetRecord(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	record, err := h.ledger.GetRecord(tenantID(c), id)
	if err != nil {
		return err
	}
	if err := requireSelfAccess(c, record.MemberID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

type generateRequest struct {
	MemberID uint       `json:"member_id" validate:"required"`
	From     time.Time  `json:"from" validate:"required"`
	Until    *time.Time `json:"until"`
}

// GenerateRecords handles POST /records/generate: derives the member's fee
// records for the window from their active assignment.
func (h *RecordHandler) GenerateRecords(c echo.Context) error {
	var req generateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	assignment, err := h.structures.GetActiveAssignment(tenantID(c), req.MemberID)
	if err != nil {
		return err
	}

	until := req.From.AddDate(1, 0, 0)
	if req.Until != nil {
		until = *req.Until
	}

	records, err := h.ledger.GenerateForAssignment(assignment, req.From, until, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, records)
}

type waiveRequest struct {
	Note string `json:"note" validate:"required"`
}

// WaiveRecord handles POST /records/:id/waive
func (h *RecordHandler) WaiveRecord(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req waiveRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	record, err := h.ledger.Waive(tenantID(c), id, req.Note, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

// MemberDuesSummary handles GET /members/:id/dues
func (h *RecordHandler) MemberDuesSummary(c echo.Context) error {
	memberID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := requireSelfAccess(c, memberID); err != nil {
		return err
	}
	summary, err := h.ledger.MemberDuesSummary(c.Request().Context(), tenantID(c), memberID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}
