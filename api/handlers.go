package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Ruscigno/astroscraper/filter"
	"github.com/Ruscigno/astroscraper/models"
	"github.com/Ruscigno/astroscraper/service"
	"github.com/Ruscigno/astroscraper/worker"
)

type Handler struct {
	svc   *service.ListingService
	queue *worker.WorkQueue
}

func NewHandler(svc *service.ListingService, queue *worker.WorkQueue) *Handler {
	return &Handler{svc: svc, queue: queue}
}

// GetListings applies the query's filter criteria to the engine and returns
// the resulting view. Omitted parameters clear their constraint.
func (h *Handler) GetListings(c *gin.Context) {
	criteria, err := criteriaFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	engine := h.svc.Engine()
	engine.SetCriteria(criteria)
	if sortBy := c.Query("sortBy"); sortBy != "" {
		key := filter.SortKey(sortBy)
		if !key.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sort key: " + sortBy})
			return
		}
		engine.SetSortBy(key)
	}

	listings := engine.Filtered()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(listings),
		"listings": listings,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Engine().GetStats())
}

func (h *Handler) GetUniqueValues(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Engine().GetUniqueValues())
}

func (h *Handler) ExportCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="listings.csv"`)
	if err := h.svc.ExportCSV(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) StartJob(c *gin.Context) {
	var job models.ScrapeJob
	if err := c.ShouldBindJSON(&job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	h.queue.Enqueue(&job)
	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) ProbeProxies(c *gin.Context) {
	results, err := h.svc.ProbeProxies(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "results": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"current": h.svc.CurrentProxy(),
	})
}

func (h *Handler) GetCurrentProxy(c *gin.Context) {
	sel := h.svc.CurrentProxy()
	if sel == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no working proxy confirmed"})
		return
	}
	c.JSON(http.StatusOK, sel)
}

func criteriaFromQuery(c *gin.Context) (filter.Criteria, error) {
	criteria := filter.Criteria{
		Search:   c.Query("search"),
		AdType:   c.Query("adType"),
		Status:   c.Query("status"),
		Location: c.Query("location"),
	}
	if raw := c.Query("minPrice"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return criteria, err
		}
		criteria.MinPrice = &v
	}
	if raw := c.Query("maxPrice"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return criteria, err
		}
		criteria.MaxPrice = &v
	}
	if raw := c.Query("hasPhoto"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return criteria, err
		}
		criteria.HasPhoto = v
	}
	if raw := c.Query("featuredOnly"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return criteria, err
		}
		criteria.FeaturedOnly = v
	}
	return criteria, nil
}
