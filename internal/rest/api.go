package rest

import "github.com/gin-gonic/gin"

func NewApi(router *gin.Engine, h *Handler) {
	tagsV1 := router.Group("tags/v1")
	{
		tagsV1.GET("/", h.GetTags)
		tagsV1.GET("/:name", h.GetTag)
	}

	imagesV1 := router.Group("images/v1")
	{
		imagesV1.GET("/", h.GetImages)
		imagesV1.GET("/search", h.SearchImages)
		imagesV1.POST("/", h.AcquireImage)
		imagesV1.POST("/delete", h.DeleteImages)
		imagesV1.PUT("/:id", h.RegisterImage)
		imagesV1.GET("/:id/tags", h.GetImageTags)
		imagesV1.PATCH("/:id/tags", h.UpdateImageTags)
		imagesV1.GET("/:id/file", h.GetImageFile)
	}
}
