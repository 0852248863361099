package app

import "github.com/gin-gonic/gin"

// Module defines the contract for a self-registering resource module.
type Module interface {
	RegisterRoutes(api *gin.RouterGroup)
}
