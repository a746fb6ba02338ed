// Package inspect serves a read-mostly HTTP view of a running pipeline: the
// stored messages, the registered listeners and filters, sink health and the
// Prometheus collectors.
package inspect

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"diagflow/internal/constants"
	"diagflow/pkg/counter"
	"diagflow/pkg/diag"
	"diagflow/pkg/errors"
	"diagflow/pkg/filter"
	"diagflow/pkg/health"
	"diagflow/pkg/listener"
	"diagflow/pkg/logger"
	"diagflow/pkg/models"
	"diagflow/pkg/perf"
	"diagflow/pkg/persist"
)

type Handler struct {
	pipeline *diag.Pipeline
	health   *health.CheckerRegistry
	logger   logger.Logger
	perf     *perf.Manager
	counter  *counter.Counter
}

func NewHandler(p *diag.Pipeline, checks *health.CheckerRegistry, log logger.Logger) *Handler {
	if checks == nil {
		checks = health.NewCheckerRegistry()
	}
	if log == nil {
		log = logger.NopLogger()
	}
	return &Handler{pipeline: p, health: checks, logger: log}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		messages := v1.Group("/messages")
		{
			messages.GET("", h.ListMessages)
			messages.POST("", h.CreateMessage)
			messages.DELETE("", h.ClearMessages)
			messages.GET("/:index", h.GetMessage)
		}

		v1.GET("/listeners", h.ListListeners)
		v1.PATCH("/listeners/:id", h.UpdateListener)
		v1.GET("/filters", h.ListFilters)
		v1.GET("/stats", h.GetStats)
		v1.GET("/perf", h.ListPerfEvents)
		v1.GET("/counters", h.ListCounters)
	}

	router.GET("/health", h.Health)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.WarnwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

type MessageList struct {
	Total  int              `json:"total"`
	Offset int              `json:"offset"`
	Limit  int              `json:"limit"`
	Items  []persist.Record `json:"items"`
}

// ListMessages returns stored messages, oldest first. Optional query
// parameters: kind, scope, limit and offset.
//
// @Summary      List stored messages
// @Description  Page through the message store, oldest first
// @Tags         messages
// @Produce      json
// @Param        kind    query     string  false  "Message kind: error, warning or unknown"
// @Param        scope   query     string  false  "Innermost scope name"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Messages to skip"
// @Success      200     {object}  MessageList
// @Failure      400     {object}  map[string]interface{}
// @Router       /messages [get]
func (h *Handler) ListMessages(c *gin.Context) {
	var kind models.Kind
	if raw := c.Query("kind"); raw != "" {
		k, err := models.ParseKind(raw)
		if err != nil {
			h.handleError(c, errors.ErrInvalidArgument.WithCause(err))
			return
		}
		kind = k
	}
	scopeName := c.Query("scope")

	limit, err := queryInt(c, "limit", constants.DefaultLimit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if limit > constants.MaxLimit {
		limit = constants.MaxLimit
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		h.handleError(c, err)
		return
	}

	matched := make([]*models.Message, 0)
	for _, msg := range h.pipeline.Messages() {
		if kind != "" && msg.Kind != kind {
			continue
		}
		if scopeName != "" && msg.ScopeName() != scopeName {
			continue
		}
		matched = append(matched, msg)
	}

	list := MessageList{Total: len(matched), Offset: offset, Limit: limit, Items: []persist.Record{}}
	if offset < len(matched) {
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		for _, msg := range matched[offset:end] {
			list.Items = append(list.Items, persist.NewRecord(msg))
		}
	}
	c.JSON(http.StatusOK, list)
}

// GetMessage godoc
// @Summary      Get a stored message
// @Tags         messages
// @Produce      json
// @Param        index  path      int  true  "Store index, 0 is the oldest"
// @Success      200    {object}  persist.Record
// @Failure      400    {object}  map[string]interface{}
// @Failure      404    {object}  map[string]interface{}
// @Router       /messages/{index} [get]
func (h *Handler) GetMessage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.handleError(c, errors.ErrInvalidArgument.WithMessage("index must be an integer"))
		return
	}
	msg := h.pipeline.StoredAt(index)
	if msg == nil {
		h.handleError(c, errors.ErrNotFound.WithMessage("message %d not found", index).WithDetail("index", index))
		return
	}
	c.JSON(http.StatusOK, persist.NewRecord(msg))
}

type CreateMessageRequest struct {
	Kind  string `json:"kind"`
	Text  string `json:"text" binding:"required"`
	Scope string `json:"scope"`
}

// CreateMessage reports a message on behalf of a remote caller.
//
// @Summary      Report a message
// @Description  Run a message through the pipeline as if it was reported in process
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        message  body      CreateMessageRequest  true  "Message to report"
// @Success      202      {object}  map[string]int
// @Failure      400      {object}  map[string]interface{}
// @Router       /messages [post]
func (h *Handler) CreateMessage(c *gin.Context) {
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, errors.ErrInvalidArgument.WithCause(err))
		return
	}
	kind, err := models.ParseKind(req.Kind)
	if err != nil {
		h.handleError(c, errors.ErrInvalidArgument.WithCause(err))
		return
	}

	ctx := c.Request.Context()
	if req.Scope != "" {
		scoped, exit, err := h.pipeline.EnterScope(ctx, req.Scope)
		if err != nil {
			h.handleError(c, err)
			return
		}
		defer exit()
		ctx = scoped
	}

	h.pipeline.Report(ctx, kind, "%s", req.Text)
	c.JSON(http.StatusAccepted, gin.H{"stored": h.pipeline.StoredCount()})
}

// ClearMessages godoc
// @Summary      Clear the message store
// @Tags         messages
// @Success      204
// @Router       /messages [delete]
func (h *Handler) ClearMessages(c *gin.Context) {
	h.pipeline.ClearStore()
	c.Status(http.StatusNoContent)
}

type ListenerInfo struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
	Open    bool   `json:"open"`
	Handled int64  `json:"handled,omitempty"`
}

// ListListeners godoc
// @Summary      List registered listeners
// @Tags         listeners
// @Produce      json
// @Success      200  {array}  ListenerInfo
// @Router       /listeners [get]
func (h *Handler) ListListeners(c *gin.Context) {
	listeners := h.pipeline.Listeners()
	out := make([]ListenerInfo, 0, len(listeners))
	for _, l := range listeners {
		out = append(out, describeListener(l))
	}
	c.JSON(http.StatusOK, out)
}

type UpdateListenerRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// UpdateListener toggles a listener on or off.
//
// @Summary      Enable or disable a listener
// @Tags         listeners
// @Accept       json
// @Produce      json
// @Param        id        path      int                    true  "Listener ID"
// @Param        listener  body      UpdateListenerRequest  true  "New state"
// @Success      200       {object}  ListenerInfo
// @Failure      400       {object}  map[string]interface{}
// @Failure      404       {object}  map[string]interface{}
// @Router       /listeners/{id} [patch]
func (h *Handler) UpdateListener(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		h.handleError(c, errors.ErrInvalidArgument.WithMessage("id must be an integer"))
		return
	}
	var req UpdateListenerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, errors.ErrInvalidArgument.WithCause(err))
		return
	}

	l := h.pipeline.Listener(id)
	if l == nil {
		h.handleError(c, errors.ErrNotFound.WithMessage("listener %d not found", id).WithDetail("id", id))
		return
	}
	toggler, ok := listener.Unwrap(l).(interface{ SetEnabled(bool) })
	if !ok {
		h.handleError(c, errors.ErrInvalidArgument.WithMessage("listener %d cannot be toggled", id))
		return
	}
	toggler.SetEnabled(*req.Enabled)
	c.JSON(http.StatusOK, describeListener(l))
}

func describeListener(l listener.Listener) ListenerInfo {
	info := ListenerInfo{
		ID:      l.ID(),
		Name:    l.Name(),
		Label:   listener.Label(l),
		Enabled: l.Enabled(),
		Open:    l.IsOpen(),
	}
	if counted, ok := listener.Unwrap(l).(interface{ HandledMessages() int64 }); ok {
		info.Handled = counted.HandledMessages()
	}
	return info
}

type FilterInfo struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Implication string `json:"implication"`
	Enabled     bool   `json:"enabled"`
	Rule        string `json:"rule,omitempty"`
}

// ListFilters godoc
// @Summary      List registered filters
// @Tags         filters
// @Produce      json
// @Success      200  {array}  FilterInfo
// @Router       /filters [get]
func (h *Handler) ListFilters(c *gin.Context) {
	filters := h.pipeline.Filters()
	out := make([]FilterInfo, 0, len(filters))
	for _, f := range filters {
		info := FilterInfo{
			ID:          f.ID(),
			Type:        "custom",
			Implication: string(f.Implication()),
			Enabled:     f.Enabled(),
		}
		switch v := f.(type) {
		case *filter.KindFilter:
			info.Type, info.Rule = constants.FilterKind, string(v.Kind())
		case *filter.SiteFilter:
			info.Type, info.Rule = string(v.Field()), v.Pattern()
		case *filter.ExpressionFilter:
			info.Type, info.Rule = constants.FilterExpression, v.Expression()
		case *filter.PayloadFilter:
			info.Type, info.Rule = constants.FilterPayload, v.Path()
			if v.Value() != "" {
				info.Rule += "=" + v.Value()
			}
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, out)
}

// GetStats godoc
// @Summary      Pipeline counters
// @Tags         stats
// @Produce      json
// @Success      200  {object}  diag.Stats
// @Router       /stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.Stats())
}

// ListPerfEvents godoc
// @Summary      List performance events
// @Description  Registered timing events with their iterations, sorted by name
// @Tags         tools
// @Produce      json
// @Success      200  {array}  perf.EventSummary
// @Router       /perf [get]
func (h *Handler) ListPerfEvents(c *gin.Context) {
	if h.perf == nil {
		c.JSON(http.StatusOK, []perf.EventSummary{})
		return
	}
	c.JSON(http.StatusOK, h.perf.Summaries())
}

// ListCounters godoc
// @Summary      List object counters
// @Tags         tools
// @Produce      json
// @Success      200  {array}  counter.Category
// @Router       /counters [get]
func (h *Handler) ListCounters(c *gin.Context) {
	if h.counter == nil {
		c.JSON(http.StatusOK, []counter.Category{})
		return
	}
	c.JSON(http.StatusOK, h.counter.Categories())
}

func (h *Handler) Health(c *gin.Context) {
	report := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.ErrInvalidArgument.
			WithMessage("%s must be a non-negative integer", name).
			WithDetail(name, raw)
	}
	return v, nil
}
