package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"traffic-analytics/internal/http/middleware"
	"traffic-analytics/internal/model"
	"traffic-analytics/internal/service"
	"traffic-analytics/internal/store"
	"traffic-analytics/internal/watch"
)

type Handler struct {
	analytics *service.Analytics
	store     *store.Store
	hub       *watch.Hub
	log       zerolog.Logger
}

func NewHandler(analytics *service.Analytics, store *store.Store, hub *watch.Hub, log zerolog.Logger) *Handler {
	return &Handler{analytics: analytics, store: store, hub: hub, log: log}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/healthz", h.health)
	r.GET("/ws", gin.WrapF(h.hub.HandleWS))

	protected := r.Group("/analytics")
	protected.Use(authMiddleware)

	protected.POST("/observations", h.recordObservation)
	protected.POST("/queue", h.recordQueueLength)
	protected.POST("/savings", h.recordSavings)
	protected.POST("/incidents", h.recordIncident)
	protected.POST("/recommendations", h.recordRecommendation)
	protected.POST("/emergencies", h.recordEmergency)
	protected.POST("/emergencies/:id/clear", h.clearEmergency)

	protected.GET("/summary", h.getSummary)
	protected.GET("/peak-hours", h.getPeakHours)
	protected.GET("/busiest-locations", h.getBusiestLocations)
	protected.GET("/hourly", h.getHourlyData)
	protected.GET("/incidents", h.listIncidents)
	protected.GET("/recommendations", h.listRecommendations)
	protected.GET("/emergencies", h.listEmergencies)
	protected.GET("/suggestions", h.listSuggestions)
	protected.GET("/export", h.exportData)
	protected.GET("/chart", h.renderChart)

	protected.PATCH("/settings", h.updateSettings)
	protected.POST("/cleanup", h.cleanup)
	protected.POST("/clear", h.clear)

	session := r.Group("/session")
	session.Use(authMiddleware)
	session.POST("", h.startSession)
	session.DELETE("", h.endSession)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "dashboards": h.hub.ClientCount()})
}

func (h *Handler) recordObservation(c *gin.Context) {
	var obs model.Observation
	if err := c.ShouldBindJSON(&obs); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid observation payload"))
		return
	}

	h.analytics.Ingest(obs)
	c.JSON(http.StatusAccepted, successResponse(gin.H{"recorded": true}))
}

func (h *Handler) recordQueueLength(c *gin.Context) {
	var req struct {
		Meters     float64 `json:"meters"`
		LocationID string  `json:"location_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid queue payload"))
		return
	}

	h.analytics.RecordQueueLength(req.Meters, req.LocationID)
	c.JSON(http.StatusAccepted, successResponse(gin.H{"recorded": req.Meters >= 0}))
}

func (h *Handler) recordSavings(c *gin.Context) {
	var req struct {
		TimeSavedMinutes float64 `json:"time_saved_minutes"`
		CO2SavedKg       float64 `json:"co2_saved_kg"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid savings payload"))
		return
	}

	h.analytics.RecordSavings(req.TimeSavedMinutes, req.CO2SavedKg)
	c.JSON(http.StatusAccepted, successResponse(gin.H{"recorded": true}))
}

func (h *Handler) recordIncident(c *gin.Context) {
	var req struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		LocationID  string `json:"location_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid incident payload"))
		return
	}

	h.analytics.RecordIncident(req.Type, req.Description, req.LocationID)
	c.JSON(http.StatusCreated, successResponse(gin.H{"recorded": true}))
}

func (h *Handler) recordRecommendation(c *gin.Context) {
	var req struct {
		Text       string `json:"text"`
		LocationID string `json:"location_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, errorResponse("invalid recommendation payload"))
		return
	}

	h.analytics.RecordRecommendation(req.Text, req.LocationID)
	c.JSON(http.StatusCreated, successResponse(gin.H{"recorded": true}))
}

func (h *Handler) recordEmergency(c *gin.Context) {
	var req struct {
		Type       string `json:"type"`
		Lane       string `json:"lane"`
		Direction  string `json:"direction"`
		LocationID string `json:"location_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid emergency payload"))
		return
	}

	id := h.analytics.RecordEmergencyEvent(req.Type, req.Lane, req.Direction, req.LocationID)
	c.JSON(http.StatusCreated, successResponse(gin.H{"id": id}))
}

func (h *Handler) clearEmergency(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if !h.analytics.ClearEmergencyEvent(id) {
		c.JSON(http.StatusNotFound, errorResponse("emergency event not found or already cleared"))
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"cleared": true}))
}

func (h *Handler) getSummary(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.analytics.Summary(locationParam(c))))
}

func (h *Handler) getPeakHours(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.analytics.PeakHours(locationParam(c))))
}

func (h *Handler) getBusiestLocations(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.analytics.BusiestLocations()))
}

func (h *Handler) getHourlyData(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.analytics.HourlyData(locationParam(c))))
}

func (h *Handler) listIncidents(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.analytics.Incidents(limitParam(c, 20))))
}

func (h *Handler) listRecommendations(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.analytics.Recommendations(limitParam(c, 10))))
}

func (h *Handler) listEmergencies(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.analytics.EmergencyEvents(limitParam(c, 10))))
}

func (h *Handler) listSuggestions(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.analytics.TopSuggestions(limitParam(c, 5))))
}

func (h *Handler) exportData(c *gin.Context) {
	switch strings.ToLower(c.DefaultQuery("format", "json")) {
	case "csv":
		data, err := h.analytics.ExportCSV()
		if err != nil {
			h.log.Error().Err(err).Msg("csv export failed")
			c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="traffic-analytics.csv"`)
		c.Data(http.StatusOK, "text/csv", data)

	case "json":
		data, err := h.analytics.ExportJSON()
		if err != nil {
			h.log.Error().Err(err).Msg("json export failed")
			c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="traffic-analytics.json"`)
		c.Data(http.StatusOK, "application/json", data)

	default:
		c.JSON(http.StatusBadRequest, errorResponse("unknown export format"))
	}
}

func (h *Handler) updateSettings(c *gin.Context) {
	var updates map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid settings payload"))
		return
	}

	h.analytics.UpdateSettings(updates)
	c.JSON(http.StatusOK, successResponse(h.analytics.Settings()))
}

func (h *Handler) cleanup(c *gin.Context) {
	var req struct {
		RetentionDays int `json:"retention_days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid cleanup payload"))
		return
	}

	h.analytics.CleanupOldData(req.RetentionDays)
	c.JSON(http.StatusOK, successResponse(gin.H{"pruned": true}))
}

func (h *Handler) clear(c *gin.Context) {
	h.analytics.ClearAnalytics()
	c.JSON(http.StatusOK, successResponse(gin.H{"cleared": true}))
}

// startSession binds the caller's identity namespace, reloads that identity's
// document, and counts the session.
func (h *Handler) startSession(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		LocationID   string `json:"location_id"`
		LocationName string `json:"location_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid session payload"))
		return
	}

	if principal.IsAnonymous() {
		if err := h.store.ClearIdentity(); err != nil {
			h.log.Warn().Err(err).Msg("failed to clear identity")
		}
	} else if err := h.store.SetIdentity(principal.Email); err != nil {
		h.log.Warn().Err(err).Msg("failed to set identity")
	}

	h.analytics.Reload()
	h.analytics.StartSession(req.LocationID)
	if req.LocationName != "" {
		h.analytics.SetLocationName(req.LocationID, req.LocationName)
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"namespace": h.store.Namespace()}))
}

func (h *Handler) endSession(c *gin.Context) {
	if err := h.store.ClearIdentity(); err != nil {
		h.log.Warn().Err(err).Msg("failed to clear identity")
	}
	h.analytics.Reload()
	c.JSON(http.StatusOK, successResponse(gin.H{"namespace": h.store.Namespace()}))
}

func locationParam(c *gin.Context) string {
	return strings.TrimSpace(c.Query("location_id"))
}

func limitParam(c *gin.Context, fallback int) int {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func successResponse(data interface{}) gin.H {
	return gin.H{"data": data}
}

func errorResponse(message string) gin.H {
	return gin.H{"error": message}
}
