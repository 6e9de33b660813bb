package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"service_orders/internal/models"
	"service_orders/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type APIHandler struct {
	taskService   services.TaskService
	orderService  services.OrderService
	paymentLedger services.PaymentLedger
	statsService  services.StatsService
	coordinator   services.Coordinator
}

func NewAPIHandler(
	taskService services.TaskService,
	orderService services.OrderService,
	paymentLedger services.PaymentLedger,
	statsService services.StatsService,
	coordinator services.Coordinator,
) *APIHandler {
	return &APIHandler{
		taskService:   taskService,
		orderService:  orderService,
		paymentLedger: paymentLedger,
		statsService:  statsService,
		coordinator:   coordinator,
	}
}

func (h *APIHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)

	api := router.Group("/api")
	{
		api.POST("/tasks", h.CreateTask)
		api.GET("/tasks/:id", h.GetTask)
		api.PUT("/tasks/:id/status", h.UpdateTaskStatus)
		api.POST("/tasks/:id/cancel", h.CancelTask)
		api.GET("/workers/:id/tasks", h.ListWorkerTasks)

		api.POST("/orders", h.CreateOrder)
		api.GET("/orders/:id", h.GetOrder)
		api.PUT("/orders/:id/status", h.SetOrderStatus)
		api.POST("/orders/:id/cancel", h.CancelOrder)
		api.POST("/orders/:id/workers", h.AddWorkers)
		api.PUT("/orders/:id/services", h.UpdateServiceLines)
		api.GET("/orders/:id/audit", h.AuditOrder)
		api.GET("/orders/:id/tasks", h.ListOrderTasks)
		api.POST("/orders/:id/payments", h.RecordOrderPayment)
		api.GET("/orders/:id/payments", h.ListOrderPayments)

		api.POST("/sales-orders", h.CreateSalesOrder)
		api.GET("/sales-orders/:id", h.GetSalesOrder)
		api.POST("/sales-orders/:id/payments", h.RecordSalesOrderPayment)
		api.POST("/sales-orders/:id/cancel", h.CancelSalesOrder)

		api.GET("/payments/stats/methods", h.PaymentsByMethod)
		api.GET("/payments/stats/daily", h.PaymentsByDay)
		api.GET("/payments/:id", h.GetPayment)
		api.POST("/payments/:id/cancel", h.CancelPayment)
	}
}

func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, fmt.Sprintf("invalid id %q", c.Param("id")))
		return 0, false
	}
	return uint(id), true
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parseOptionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := parseDate(*raw)
	if err != nil {
		return nil, models.NewValidationError(field, "invalid date %q", *raw)
	}
	return &t, nil
}

// amountText keeps the raw JSON amount so both 12.5 and "12.50" are accepted.
func amountText(raw json.RawMessage) string {
	return strings.Trim(strings.TrimSpace(string(raw)), `"`)
}

type createTaskRequest struct {
	WorkerID    uint   `json:"worker_id" binding:"required"`
	ProjectID   uint   `json:"project_id" binding:"required"`
	DueDate     string `json:"due_date" binding:"required"`
	Description string `json:"description"`
	DelayReason string `json:"delay_reason"`
	OrderID     *uint  `json:"order_id"`
}

func (h *APIHandler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		h.errorHandler(c, models.NewValidationError("due_date", "invalid date %q", req.DueDate))
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), services.CreateTaskInput{
		WorkerID:    req.WorkerID,
		ProjectID:   req.ProjectID,
		DueDate:     due,
		Description: req.Description,
		DelayReason: req.DelayReason,
		OrderID:     req.OrderID,
	})
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *APIHandler) GetTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	task, err := h.taskService.GetTask(c.Request.Context(), id)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *APIHandler) UpdateTaskStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Status      models.TaskStatus `json:"status" binding:"required"`
		DelayReason string            `json:"delay_reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	task, err := h.taskService.UpdateTaskStatus(c.Request.Context(), id, req.Status, req.DelayReason)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *APIHandler) CancelTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	task, err := h.taskService.CancelTask(c.Request.Context(), id)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *APIHandler) ListWorkerTasks(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	tasks, err := h.taskService.ListTasksByWorker(c.Request.Context(), id)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

type createOrderRequest struct {
	ClientID     uint                        `json:"client_id" binding:"required"`
	Description  string                      `json:"description"`
	DueDate      *string                     `json:"due_date"`
	Services     []services.ServiceLineInput `json:"services"`
	CustomFields []services.CustomFieldInput `json:"custom_fields"`
}

func (h *APIHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	due, err := parseOptionalDate("due_date", req.DueDate)
	if err != nil {
		h.errorHandler(c, err)
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		ClientID:     req.ClientID,
		Description:  req.Description,
		DueDate:      due,
		Services:     req.Services,
		CustomFields: req.CustomFields,
	})
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *APIHandler) GetOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *APIHandler) SetOrderStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Status models.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	order, err := h.coordinator.SetOrderStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type cancelRequest struct {
	Reason         string `json:"reason"`
	CascadeToTasks bool   `json:"cascade_to_tasks"`
}

func (h *APIHandler) CancelOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	res, err := h.coordinator.CancelOrder(c.Request.Context(), id, req.Reason, req.CascadeToTasks, operatorName(c))
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type workerAssignmentRequest struct {
	WorkerID        uint    `json:"worker_id"`
	ProjectID       uint    `json:"project_id"`
	TaskDescription string  `json:"task_description"`
	StartDate       *string `json:"start_date"`
	EndDate         *string `json:"end_date"`
}

func (h *APIHandler) AddWorkers(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Workers []workerAssignmentRequest `json:"workers" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	assignments := make([]services.WorkerAssignment, 0, len(req.Workers))
	for _, w := range req.Workers {
		start, err := parseOptionalDate("start_date", w.StartDate)
		if err != nil {
			h.errorHandler(c, err)
			return
		}
		end, err := parseOptionalDate("end_date", w.EndDate)
		if err != nil {
			h.errorHandler(c, err)
			return
		}
		assignments = append(assignments, services.WorkerAssignment{
			WorkerID:        w.WorkerID,
			ProjectID:       w.ProjectID,
			TaskDescription: w.TaskDescription,
			StartDate:       start,
			EndDate:         end,
		})
	}

	rows, err := h.orderService.AddWorkersToOrder(c.Request.Context(), id, assignments)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"workers": rows})
}

func (h *APIHandler) UpdateServiceLines(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Services []services.ServiceLineInput `json:"services"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	order, err := h.orderService.UpdateServiceLines(c.Request.Context(), id, req.Services)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *APIHandler) AuditOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	audit, err := h.coordinator.AuditOrder(c.Request.Context(), id)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

func (h *APIHandler) ListOrderTasks(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	tasks, err := h.taskService.ListTasksByOrder(c.Request.Context(), id)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

type paymentRequest struct {
	Amount           json.RawMessage `json:"amount"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentReference string          `json:"payment_reference"`
}

func (h *APIHandler) recordPayment(c *gin.Context, refType models.ReferenceType) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	res, err := h.coordinator.RecordPayment(c.Request.Context(), services.RecordPaymentInput{
		ReferenceType:    refType,
		ReferenceID:      id,
		Amount:           amountText(req.Amount),
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *APIHandler) RecordOrderPayment(c *gin.Context) {
	h.recordPayment(c, models.ReferenceServiceOrder)
}

func (h *APIHandler) RecordSalesOrderPayment(c *gin.Context) {
	h.recordPayment(c, models.ReferenceSalesOrder)
}

func (h *APIHandler) ListOrderPayments(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	payments, err := h.paymentLedger.ListPayments(c.Request.Context(), models.ReferenceServiceOrder, id)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *APIHandler) CreateSalesOrder(c *gin.Context) {
	var req struct {
		ClientID    uint            `json:"client_id" binding:"required"`
		Description string          `json:"description"`
		TotalAmount decimal.Decimal `json:"total_amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	order, err := h.orderService.CreateSalesOrder(c.Request.Context(), services.CreateSalesOrderInput{
		ClientID:    req.ClientID,
		Description: req.Description,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *APIHandler) GetSalesOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	order, err := h.orderService.GetSalesOrder(c.Request.Context(), id)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *APIHandler) CancelSalesOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	res, err := h.coordinator.CancelSalesOrder(c.Request.Context(), id, req.Reason, operatorName(c))
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *APIHandler) GetPayment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	payment, err := h.paymentLedger.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *APIHandler) CancelPayment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	res, err := h.coordinator.CancelPayment(c.Request.Context(), id, req.Reason, operatorName(c))
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *APIHandler) PaymentsByMethod(c *gin.Context) {
	rows, err := h.statsService.AggregateByMethod(c.Request.Context())
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"methods": rows})
}

func (h *APIHandler) PaymentsByDay(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		h.errorHandler(c, models.NewValidationError("from", "expected YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		h.errorHandler(c, models.NewValidationError("to", "expected YYYY-MM-DD"))
		return
	}

	rows, err := h.statsService.AggregateByDateRange(c.Request.Context(), from, to)
	if err != nil {
		h.errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": rows})
}
