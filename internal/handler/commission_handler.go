package handler

import (
	"net/http"

	"commissionledger/internal/middleware"
	"commissionledger/internal/service"
	"commissionledger/pkg/pagination"
	"commissionledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type CommissionHandler struct {
	commissionService service.CommissionService
}

func NewCommissionHandler(commissionService service.CommissionService) *CommissionHandler {
	return &CommissionHandler{commissionService: commissionService}
}

func (h *CommissionHandler) RegisterRoutes(router *gin.RouterGroup) {
	commissions := router.Group("/api/commissions")
	{
		commissions.POST("", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAccountant, middleware.RoleService), h.RecordCommission)
		commissions.GET("", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAccountant), h.ListCommissions)
	}
}

// RecordCommission books the commission of an accepted booking
// @Summary      Record commission
// @Description  Records the platform commission for an accepted booking. Each booking is recorded once.
// @Tags         commissions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RecordCommissionRequest  true  "Commission Payload"
// @Success      201      {object}  response.Response{data=service.CommissionResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/commissions [post]
func (h *CommissionHandler) RecordCommission(c *gin.Context) {
	var req service.RecordCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	commission, err := h.commissionService.RecordCommission(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, commission))
}

// ListCommissions returns a paginated list of commissions
// @Summary      List commissions
// @Description  Filters by payee, status and billing month
// @Tags         commissions
// @Security     BearerAuth
// @Produce      json
// @Param        payee_id  query     string  false  "Payee ID"
// @Param        status    query     string  false  "PENDING, BILLED or COLLECTED"
// @Param        year      query     int     false  "Billing year"
// @Param        month     query     int     false  "Billing month"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Number of items per page (default 20)"
// @Success      200       {object}  response.Response{data=response.Page}
// @Failure      400       {object}  response.Response
// @Router       /api/commissions [get]
func (h *CommissionHandler) ListCommissions(c *gin.Context) {
	p := pagination.Parse(c)
	year, err := queryInt(c, "year")
	if err != nil {
		respondError(c, err)
		return
	}
	month, err := queryInt(c, "month")
	if err != nil {
		respondError(c, err)
		return
	}

	commissions, total, err := h.commissionService.ListCommissions(c.Request.Context(), service.CommissionListFilter{
		PayeeID: c.Query("payee_id"),
		Status:  c.Query("status"),
		Year:    year,
		Month:   month,
		Page:    p.Page,
		Limit:   p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.PageOf(commissions, total)))
}
