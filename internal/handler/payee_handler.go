package handler

import (
	"net/http"

	"commissionledger/internal/middleware"
	"commissionledger/internal/service"
	"commissionledger/pkg/pagination"
	"commissionledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type PayeeHandler struct {
	payeeService   service.PayeeService
	paymentService service.PaymentService
}

func NewPayeeHandler(payeeService service.PayeeService, paymentService service.PaymentService) *PayeeHandler {
	return &PayeeHandler{payeeService: payeeService, paymentService: paymentService}
}

func (h *PayeeHandler) RegisterRoutes(router *gin.RouterGroup) {
	payees := router.Group("/api/payees")
	payees.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAccountant))
	{
		payees.POST("", h.CreatePayee)
		payees.GET("", h.ListPayees)
		payees.GET("/:id", h.GetPayee)
		payees.PUT("/:id", h.UpdatePayee)
		payees.PUT("/:id/mandate", h.LinkMandate)
		payees.POST("/:id/collect", h.CollectOutstanding)
	}
}

// CreatePayee registers a workshop that receives bookings
// @Summary      Create payee
// @Tags         payees
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePayeeRequest  true  "Create Payee Payload"
// @Success      201      {object}  response.Response{data=service.PayeeResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/payees [post]
func (h *PayeeHandler) CreatePayee(c *gin.Context) {
	var req service.CreatePayeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	payee, err := h.payeeService.CreatePayee(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, payee))
}

// ListPayees returns a paginated list of payees
// @Summary      List payees
// @Tags         payees
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Name or company contains"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /api/payees [get]
func (h *PayeeHandler) ListPayees(c *gin.Context) {
	p := pagination.Parse(c)

	payees, total, err := h.payeeService.ListPayees(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.PageOf(payees, total)))
}

// GetPayee
// @Summary      Get payee
// @Tags         payees
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Payee ID"
// @Success      200  {object}  response.Response{data=service.PayeeResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/payees/{id} [get]
func (h *PayeeHandler) GetPayee(c *gin.Context) {
	payee, err := h.payeeService.GetPayee(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, payee))
}

// UpdatePayee changes contact data, the rate override or the active flag
// @Summary      Update payee
// @Tags         payees
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Payee ID"
// @Param        payload  body      service.UpdatePayeeRequest  true  "Update Payee Payload"
// @Success      200      {object}  response.Response{data=service.PayeeResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/payees/{id} [put]
func (h *PayeeHandler) UpdatePayee(c *gin.Context) {
	var req service.UpdatePayeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	payee, err := h.payeeService.UpdatePayee(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, payee))
}

// LinkMandate attaches a direct debit mandate to the payee
// @Summary      Link mandate
// @Description  A new mandate starts at "created" unless a status is given
// @Tags         payees
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Payee ID"
// @Param        payload  body      service.LinkMandateRequest  true  "Mandate Payload"
// @Success      200      {object}  response.Response{data=service.PayeeResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/payees/{id}/mandate [put]
func (h *PayeeHandler) LinkMandate(c *gin.Context) {
	var req service.LinkMandateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	payee, err := h.payeeService.LinkMandate(c.Request.Context(), c.Param("id"), req, middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, payee))
}

// CollectOutstanding bundles every unpaid invoice into one direct debit
// @Summary      Collect outstanding invoices
// @Tags         payees
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Payee ID"
// @Success      200  {object}  response.Response{data=service.CollectionResponse}
// @Failure      400  {object}  response.Response
// @Failure      502  {object}  response.Response
// @Router       /api/payees/{id}/collect [post]
func (h *PayeeHandler) CollectOutstanding(c *gin.Context) {
	res, err := h.paymentService.CollectOutstanding(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
