package rest

import (
	"github.com/dfryer1193/ciel/gallery/application"
)

// Handler serves the gallery API on top of the application services.
type Handler struct {
	search    *application.SearchService
	lifecycle *application.LifecycleService
}

func NewHandler(search *application.SearchService, lifecycle *application.LifecycleService) *Handler {
	return &Handler{
		search:    search,
		lifecycle: lifecycle,
	}
}
