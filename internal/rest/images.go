package rest

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/dfryer1193/ciel/api"
	"github.com/dfryer1193/ciel/gallery/domain"
)

// maxUploadSize bounds multipart uploads held in memory for acquisition.
const maxUploadSize = 64 << 20

func (h *Handler) GetImages(c *gin.Context) {
	images, err := h.search.ListImages(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.ImageList{Images: images})
}

// SearchImages accepts either a free-text q ("cat outdoor !night") or
// repeated require and exclude parameters.
func (h *Handler) SearchImages(c *gin.Context) {
	var (
		required, excluded domain.TagSet
		err                error
	)

	if q, ok := c.GetQuery("q"); ok {
		required, excluded, err = domain.ParseTagQuery(q)
	} else {
		required, err = domain.NewTagSet(c.QueryArray("require")...)
		if err == nil {
			excluded, err = domain.NewTagSet(c.QueryArray("exclude")...)
		}
	}
	if err != nil {
		respondError(c, err)
		return
	}

	images, err := h.search.Search(c.Request.Context(), required, excluded)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.ImageList{Images: images})
}

func (h *Handler) GetImageTags(c *gin.Context) {
	tags, err := h.search.ImageTags(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.TagList{Tags: tags})
}

func (h *Handler) GetImageFile(c *gin.Context) {
	path, err := h.lifecycle.OpenImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.File(path)
}

func (h *Handler) AcquireImage(c *gin.Context) {
	src, err := acquireSource(c)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	result := <-h.lifecycle.AcquireAsync(c.Request.Context(), src)
	if result.Err != nil {
		respondError(c, result.Err)
		return
	}

	c.JSON(http.StatusCreated, api.AcquireResponse{ID: result.ID})
}

func (h *Handler) RegisterImage(c *gin.Context) {
	req := &api.RegisterRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.lifecycle.Register(c.Request.Context(), c.Param("id"), req.Tags); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) UpdateImageTags(c *gin.Context) {
	req := &api.RetagRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.lifecycle.Retag(c.Request.Context(), c.Param("id"), req.Added, req.Removed); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteImages(c *gin.Context) {
	req := &api.DeleteRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		respondBadRequest(c, err)
		return
	}

	committed, err := h.lifecycle.DeleteImages(c.Request.Context(), req.IDs, req.Force)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.DeleteResponse{Committed: committed})
}

// acquireSource reads the upload from a multipart "file" field, or the
// source reference from a JSON body.
func acquireSource(c *gin.Context) (domain.Source, error) {
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		req := &api.AcquireRequest{}
		if err := c.ShouldBindJSON(req); err != nil {
			return domain.Source{}, err
		}
		return domain.ParseSource(req.Source), nil
	}

	header, err := c.FormFile("file")
	if err != nil {
		return domain.Source{}, err
	}

	f, err := header.Open()
	if err != nil {
		return domain.Source{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		return domain.Source{}, err
	}
	if len(data) > maxUploadSize {
		return domain.Source{}, fmt.Errorf("upload exceeds %d bytes", maxUploadSize)
	}

	return domain.BytesSource(data), nil
}
