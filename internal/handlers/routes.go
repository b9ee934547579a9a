package handlers

import (
	"net/http"

	"go-pos-ledger/internal/middleware"
	"go-pos-ledger/internal/models"

	"github.com/gin-gonic/gin"
)

// Mount registers every route on r. The register route only exists when
// allowRegistration is set.
func (h *Handler) Mount(r gin.IRouter, allowRegistration bool) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "online"}) })

	r.POST("/auth/initial-admin", h.InitialAdmin)
	r.POST("/auth/login", h.Login)

	// --- PROTECTED ROUTES ---
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(h.Tokens))
	{
		// ADMIN & MANAGER (store-scoped)
		api.POST("/products", h.CreateProduct)
		api.GET("/products/store/:store", h.ListProducts)
		api.GET("/products/details/:id", h.ProductDetails)
		api.PATCH("/products/:id/quantity", h.AdjustQuantity)
		api.PATCH("/products/:id/prices", h.AdjustPrices)

		api.POST("/sales", h.CreateSale)
		api.GET("/sales/store/:store", h.SalesByStore)
		api.GET("/sales/store/:store/export", h.ExportSales)
		api.GET("/sales/report/daily", h.DailyReport)
		api.GET("/sales/:id", h.SaleDetails)

		api.POST("/images/:id", h.UploadImages)
		api.GET("/images/:id", h.ListImages)
		api.DELETE("/images/:id/:filename", h.DeleteImage)

		// ADMIN ONLY
		admin := api.Group("/")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/ask", h.AskAI)
			admin.DELETE("/auth/users/:username", h.DeleteUser)
			if allowRegistration {
				admin.POST("/auth/register", h.Register)
			}
		}
	}
}
