package router

import (
	"net/http"

	"image-variants/internal/http-server/handler/image"
	"image-variants/internal/http-server/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/wb-go/wbf/zlog"
)

type Handler struct {
	ImageHandler *image.ImageHandler
	Auth         *middleware.Authenticator
	Logger       *zlog.Zerolog
}

func SetupRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RecoveryMiddleware(h.Logger))
	r.Use(middleware.LoggingMiddleware(h.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/images", func(r chi.Router) {
			r.Get("/{id}", h.ImageHandler.GetImage)
			r.Head("/{id}", h.ImageHandler.HeadImage)

			r.Group(func(r chi.Router) {
				r.Use(h.Auth.RequireAuth)

				r.Post("/", h.ImageHandler.UploadImage)
				r.Get("/", h.ImageHandler.ListImages)
				r.Delete("/{id}", h.ImageHandler.DeleteImage)
			})
		})

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
	})

	return r
}
