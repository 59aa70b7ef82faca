package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Ruscigno/astroscraper/service"
	"github.com/Ruscigno/astroscraper/worker"
)

func SetupRouter(svc *service.ListingService, queue *worker.WorkQueue) *gin.Engine {
	r := gin.Default()
	h := NewHandler(svc, queue)

	r.GET("/listings", h.GetListings)
	r.GET("/listings/stats", h.GetStats)
	r.GET("/listings/values", h.GetUniqueValues)
	r.GET("/listings/export", h.ExportCSV)
	r.POST("/jobs", h.StartJob)
	r.POST("/proxies/probe", h.ProbeProxies)
	r.GET("/proxies/current", h.GetCurrentProxy)

	return r
}
