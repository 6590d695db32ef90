package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dfryer1193/ciel/api"
)

func (h *Handler) GetTags(c *gin.Context) {
	tags, err := h.search.ListTags(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.TagList{Tags: tags})
}

func (h *Handler) GetTag(c *gin.Context) {
	name := c.Param("name")

	exists, err := h.search.TagExists(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.TagStatus{Name: name, Exists: exists})
}
