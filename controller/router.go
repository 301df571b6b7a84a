package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github/itish2003/docqa/ui"
)

// corsMiddleware lets the API be called from any origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+SessionHeader)
		c.Header("Access-Control-Expose-Headers", SessionHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(rag *RAGController) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), corsMiddleware())

	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", ui.IndexHTML)
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "docqa",
			"version": "1.0.0",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/upload_docs", rag.UploadDocs)
	router.GET("/get_answer", rag.GetAnswer)
	router.POST("/get_answer", rag.GetAnswer)
	router.GET("/docs", rag.CountDocs)
	router.DELETE("/docs", rag.DeleteDocs)
	router.DELETE("/sessions/:id", rag.ClearSession)

	return router
}
