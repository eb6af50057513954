package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lotline/lotline/internal/escalation"
	"github.com/lotline/lotline/internal/inventory"
	"github.com/lotline/lotline/internal/leads"
	"github.com/lotline/lotline/internal/models"
	"github.com/lotline/lotline/internal/sales"
)

func (s *Server) registerRoutes(router *gin.Engine) {
	api := router.Group("/api")

	api.GET("/vehicles", s.handleSearch)
	api.GET("/vehicles/near/:zip", s.handleSearchNear)
	api.GET("/vehicles/:id", s.handleVehicle)
	api.POST("/vehicles", s.handleUpsert)
	api.DELETE("/vehicles/:id", s.handleRemove)

	api.GET("/stats", s.handleStats)
	api.GET("/reports/aging", s.handleAging)
	api.GET("/reports/pricing", s.handlePricing)
	api.GET("/reports/funnel", s.handleFunnel)

	api.POST("/leads", s.handleRecordLead)
	api.GET("/leads/hot", s.handleHotLeads)
	api.GET("/leads/analytics", s.handleLeadAnalytics)
	api.GET("/leads/:id", s.handleLeadDetail)

	api.POST("/sales", s.handleRecordSale)
	api.GET("/sales/recent", s.handleRecentSales)

	api.GET("/escalations", s.handleEscalations)
	api.POST("/escalations/:id/delivered", s.handleMarkDelivered)
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// searchFilters reads the common filter query params.
func searchFilters(c *gin.Context) inventory.Filters {
	f := inventory.Filters{
		Make:           c.Query("make"),
		Model:          c.Query("model"),
		BodyType:       c.Query("body_type"),
		FuelType:       c.Query("fuel_type"),
		DealerLocation: c.Query("location"),
		DealerZip:      c.Query("dealer_zip"),
		IncludeSold:    c.Query("include_sold") == "true",
	}
	if v, err := strconv.Atoi(c.Query("year_min")); err == nil {
		f.YearMin = &v
	}
	if v, err := strconv.Atoi(c.Query("year_max")); err == nil {
		f.YearMax = &v
	}
	if v, err := strconv.ParseFloat(c.Query("price_min"), 64); err == nil {
		f.PriceMin = &v
	}
	if v, err := strconv.ParseFloat(c.Query("price_max"), 64); err == nil {
		f.PriceMax = &v
	}
	return f
}

func (s *Server) handleSearch(c *gin.Context) {
	offset, _ := strconv.Atoi(c.Query("offset"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, total, err := s.inv.SearchPageWithCount(searchFilters(c), offset, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": rows, "total": total})
}

func (s *Server) handleSearchNear(c *gin.Context) {
	radius, _ := strconv.ParseFloat(c.Query("radius"), 64)
	rows, err := s.inv.SearchByLocation(s.geo, c.Param("zip"), radius, searchFilters(c))
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": rows})
}

func (s *Server) handleVehicle(c *gin.Context) {
	v, err := s.inv.Get(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if v == nil {
		fail(c, http.StatusNotFound, errors.New("vehicle not found"))
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handleUpsert(c *gin.Context) {
	var v models.Vehicle
	if err := c.ShouldBindJSON(&v); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := s.inv.Upsert(&v); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handleRemove(c *gin.Context) {
	removed, err := s.inv.Remove(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if !removed {
		fail(c, http.StatusNotFound, errors.New("vehicle not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

func (s *Server) handleStats(c *gin.Context) {
	st, err := s.inv.Stats(s.geo)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleAging(c *gin.Context) {
	rep, err := s.reports.Aging()
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) handlePricing(c *gin.Context) {
	rep, err := s.reports.Pricing()
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) handleFunnel(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	rep, err := s.reports.Funnel(days, c.Query("dealer_zip"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) handleRecordLead(c *gin.Context) {
	var req leads.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	res, err := s.engine.RecordLead(req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, leads.ErrVehicleNotFound) {
			status = http.StatusNotFound
		}
		fail(c, status, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleHotLeads(c *gin.Context) {
	f := leads.HotLeadFilters{
		DealerZip: c.Query("dealer_zip"),
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.MinScore, _ = strconv.ParseFloat(c.Query("min_score"), 64)
	f.Days, _ = strconv.Atoi(c.Query("days"))
	rows, err := s.engine.HotLeads(f)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": rows})
}

func (s *Server) handleLeadDetail(c *gin.Context) {
	d, err := s.engine.LeadDetail(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if d == nil {
		fail(c, http.StatusNotFound, errors.New("lead not found"))
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleLeadAnalytics(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	a, err := s.engine.Analytics(days)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) handleRecordSale(c *gin.Context) {
	var req sales.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	res, err := s.sales.RecordSale(req)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, sales.ErrVehicleNotFound), errors.Is(err, sales.ErrLeadNotFound):
			status = http.StatusNotFound
		case errors.Is(err, sales.ErrAlreadySold):
			status = http.StatusConflict
		}
		fail(c, status, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleRecentSales(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	var since time.Time
	if days, err := strconv.Atoi(c.Query("days")); err == nil && days > 0 {
		since = time.Now().UTC().AddDate(0, 0, -days)
	}
	rows, err := s.sales.Recent(since, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": rows})
}

func (s *Server) handleEscalations(c *gin.Context) {
	f := escalation.Filters{Type: c.Query("type")}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		f.Limit = v
	}
	if hours, err := strconv.Atoi(c.Query("since_hours")); err == nil && hours > 0 {
		f.Since = time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	}

	var (
		rows []models.Escalation
		err  error
	)
	if c.Query("include_delivered") == "true" {
		rows, err = s.esc.All(f)
	} else {
		rows, err = s.esc.Pending(f)
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"escalations": rows})
}

func (s *Server) handleMarkDelivered(c *gin.Context) {
	changed, found, err := s.esc.MarkDelivered(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if !found {
		fail(c, http.StatusNotFound, errors.New("escalation not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": true, "changed": changed})
}
