package handler

import (
	"fmt"
	"net/http"
	"time"

	"commissionledger/internal/middleware"
	"commissionledger/internal/service"
	"commissionledger/pkg/pagination"
	"commissionledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type LedgerHandler struct {
	ledgerService service.LedgerService
}

func NewLedgerHandler(ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

func (h *LedgerHandler) RegisterRoutes(router *gin.RouterGroup) {
	ledger := router.Group("/api/ledger")
	ledger.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAccountant))
	{
		ledger.GET("/entries", h.ListEntries)
		ledger.GET("/trial-balance", h.TrialBalance)
		ledger.GET("/export/datev", h.ExportDATEV)
	}
}

// ListEntries returns a paginated journal
// @Summary      List accounting entries
// @Tags         ledger
// @Security     BearerAuth
// @Produce      json
// @Param        from         query     string  false  "First booking date (YYYY-MM-DD)"
// @Param        to           query     string  false  "Last booking date (YYYY-MM-DD)"
// @Param        source_type  query     string  false  "INVOICE, PAYMENT or STORNO"
// @Param        account      query     string  false  "Debit or credit account"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Number of items per page (default 20)"
// @Success      200          {object}  response.Response{data=response.Page}
// @Failure      400          {object}  response.Response
// @Router       /api/ledger/entries [get]
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.EntryListFilter{
		SourceType: c.Query("source_type"),
		Account:    c.Query("account"),
		Page:       p.Page,
		Limit:      p.Limit,
	}
	if raw := c.Query("from"); raw != "" {
		from, err := queryDate(c, "from", time.Time{})
		if err != nil {
			respondError(c, err)
			return
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := queryDate(c, "to", time.Time{})
		if err != nil {
			respondError(c, err)
			return
		}
		until := to.AddDate(0, 0, 1)
		filter.Until = &until
	}

	entries, total, err := h.ledgerService.ListEntries(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.PageOf(entries, total)))
}

// TrialBalance sums debits and credits per account
// @Summary      Trial balance
// @Description  Defaults to the current year up to today
// @Tags         ledger
// @Security     BearerAuth
// @Produce      json
// @Param        from  query     string  false  "First booking date (YYYY-MM-DD)"
// @Param        to    query     string  false  "Last booking date (YYYY-MM-DD)"
// @Success      200   {object}  response.Response{data=service.TrialBalanceResponse}
// @Failure      400   {object}  response.Response
// @Router       /api/ledger/trial-balance [get]
func (h *LedgerHandler) TrialBalance(c *gin.Context) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	from, until, err := dateRange(c, time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC), today)
	if err != nil {
		respondError(c, err)
		return
	}

	balance, err := h.ledgerService.TrialBalance(c.Request.Context(), from, until)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, balance))
}

// ExportDATEV downloads the journal as a DATEV Buchungsstapel
// @Summary      DATEV export
// @Tags         ledger
// @Security     BearerAuth
// @Produce      text/csv
// @Param        from  query     string  true  "First booking date (YYYY-MM-DD)"
// @Param        to    query     string  true  "Last booking date (YYYY-MM-DD)"
// @Success      200   {file}    file
// @Failure      400   {object}  response.Response
// @Router       /api/ledger/export/datev [get]
func (h *LedgerHandler) ExportDATEV(c *gin.Context) {
	from, until, err := dateRange(c, time.Time{}, time.Time{})
	if err != nil {
		respondError(c, err)
		return
	}

	file, _, err := h.ledgerService.ExportDATEV(c.Request.Context(), from, until)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("EXTF_Buchungsstapel_%s_%s.csv", from.Format("20060102"), until.AddDate(0, 0, -1).Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", file)
}
