package handler

import (
	"net/http"
	"time"

	"commissionledger/internal/middleware"
	"commissionledger/internal/service"
	"commissionledger/pkg/pagination"
	"commissionledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/invoices")
	invoices.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAccountant))
	{
		invoices.GET("", h.ListInvoices)
		invoices.GET("/stats", h.GetStats)
		invoices.GET("/:id", h.GetInvoice)
		invoices.GET("/:id/entries", h.GetInvoiceEntries)
		invoices.POST("/:id/storno", h.StornoInvoice)
	}
}

// ListInvoices returns a paginated list of commission invoices
// @Summary      List invoices
// @Description  Filters by payee, status, billing month (YYYY-MM) and invoice number
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        payee_id  query     string  false  "Payee ID"
// @Param        status    query     string  false  "DRAFT, SENT, PAID or CANCELLED"
// @Param        period    query     string  false  "Billing month (YYYY-MM)"
// @Param        number    query     string  false  "Invoice number contains"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Number of items per page (default 20)"
// @Success      200       {object}  response.Response{data=response.Page}
// @Failure      400       {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	p := pagination.Parse(c)

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), service.InvoiceListFilter{
		PayeeID: c.Query("payee_id"),
		Status:  c.Query("status"),
		Period:  c.Query("period"),
		Number:  c.Query("number"),
		Page:    p.Page,
		Limit:   p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.PageOf(invoices, total)))
}

// GetStats
// @Summary      Invoice statistics
// @Description  Counts per status and revenue totals for one issue year
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        year  query     int  false  "Year (default current year)"
// @Success      200   {object}  response.Response{data=service.InvoiceStatsResponse}
// @Failure      400   {object}  response.Response
// @Router       /api/invoices/stats [get]
func (h *InvoiceHandler) GetStats(c *gin.Context) {
	year, err := queryInt(c, "year")
	if err != nil {
		respondError(c, err)
		return
	}
	if year == 0 {
		year = time.Now().UTC().Year()
	}

	stats, err := h.invoiceService.Stats(c.Request.Context(), year)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// GetInvoice returns one invoice with its line items
// @Summary      Get invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// GetInvoiceEntries
// @Summary      Accounting entries of an invoice
// @Description  Issuance, payment and storno entries, oldest first
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=[]service.EntryResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/entries [get]
func (h *InvoiceHandler) GetInvoiceEntries(c *gin.Context) {
	entries, err := h.invoiceService.InvoiceEntries(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}

// StornoInvoice cancels an invoice with a balancing entry
// @Summary      Cancel invoice (Storno)
// @Description  Posts a reversing entry and marks the invoice CANCELLED. The original entry is kept.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Invoice ID"
// @Param        payload  body      service.StornoRequest  true  "Storno Payload"
// @Success      200      {object}  response.Response{data=service.StornoResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/storno [post]
func (h *InvoiceHandler) StornoInvoice(c *gin.Context) {
	var req service.StornoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.invoiceService.Storno(c.Request.Context(), c.Param("id"), req.Reason, middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
