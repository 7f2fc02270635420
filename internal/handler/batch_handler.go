package handler

import (
	"net/http"
	"time"

	"commissionledger/internal/middleware"
	"commissionledger/internal/model"
	"commissionledger/internal/service"
	"commissionledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type BatchHandler struct {
	generator  service.InvoiceGenerator
	cronSecret string
	now        func() time.Time
}

func NewBatchHandler(generator service.InvoiceGenerator, cronSecret string) *BatchHandler {
	return &BatchHandler{generator: generator, cronSecret: cronSecret, now: time.Now}
}

func (h *BatchHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/commission-invoices")
	group.Use(middleware.CronAuth(h.cronSecret))
	{
		group.POST("/run", h.RunScheduled)
		group.GET("/run", h.RunManual)
	}

	runs := router.Group("/api/batch-runs")
	runs.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAccountant))
	{
		runs.GET("", h.ListRuns)
	}
}

// RunScheduled is called by the external scheduler
// @Summary      Run monthly invoice batch
// @Description  Bills every payee's PENDING commissions of the previous month, or of ?period=YYYY-MM
// @Tags         batch
// @Security     BearerAuth
// @Produce      json
// @Param        period  query     string  false  "Billing month (YYYY-MM)"
// @Success      200     {object}  service.BatchSummary
// @Failure      401     {object}  response.Response
// @Failure      409     {object}  response.Response
// @Router       /commission-invoices/run [post]
func (h *BatchHandler) RunScheduled(c *gin.Context) {
	h.run(c, model.TriggerSchedule)
}

// RunManual lets an operator trigger the batch from a browser
// @Summary      Run monthly invoice batch (manual)
// @Description  Same as the POST variant; the secret may be passed as ?secret=
// @Tags         batch
// @Produce      json
// @Param        secret  query     string  false  "Cron secret"
// @Param        period  query     string  false  "Billing month (YYYY-MM)"
// @Success      200     {object}  service.BatchSummary
// @Failure      401     {object}  response.Response
// @Failure      409     {object}  response.Response
// @Router       /commission-invoices/run [get]
func (h *BatchHandler) RunManual(c *gin.Context) {
	h.run(c, model.TriggerManual)
}

func (h *BatchHandler) run(c *gin.Context, trigger string) {
	var (
		summary service.BatchSummary
		err     error
	)
	if label := c.Query("period"); label != "" {
		period, perr := service.ParsePeriod(label)
		if perr != nil {
			respondError(c, perr)
			return
		}
		summary, err = h.generator.RunForPeriod(c.Request.Context(), period, trigger, middleware.Actor(c))
	} else {
		summary, err = h.generator.Run(c.Request.Context(), h.now(), trigger, middleware.Actor(c))
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ListRuns godoc
// @Summary      List batch runs
// @Description  Most recent monthly batch executions with their outcome counts
// @Tags         batch
// @Security     BearerAuth
// @Produce      json
// @Param        limit  query     int  false  "Maximum rows (default 20, max 100)"
// @Success      200    {object}  response.Response{data=[]service.BatchRunResponse}
// @Failure      400    {object}  response.Response
// @Router       /api/batch-runs [get]
func (h *BatchHandler) ListRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, err)
		return
	}
	runs, err := h.generator.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, runs))
}
