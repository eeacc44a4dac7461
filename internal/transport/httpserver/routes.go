package httpserver

import (
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/botio91514/gym-backend/internal/config"
	"github.com/botio91514/gym-backend/internal/transport/httpserver/handler"
	authmw "github.com/botio91514/gym-backend/internal/transport/httpserver/middleware"
	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(cfg config.Config, handlers *handler.Handlers, verifier authmw.TokenVerifier, receiptsDir string, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(authmw.NewCORS(cfg.CORSOrigins))

	registrations := authmw.NewRateLimit(cfg.RateLimit.RegistrationsPerMinute, cfg.RateLimit.Burst)
	admin := authmw.NewAdminAuth(verifier, cfg.Auth.SkipAuth, log)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)
		r.Post("/auth/login", handlers.Login)

		r.With(registrations.Middleware).Post("/members/register", handlers.RegisterMember)
		r.Get("/members/check-email", handlers.CheckEmail)

		r.Group(func(r chi.Router) {
			r.Use(admin.Middleware)

			r.Get("/auth/verify", handlers.Verify)

			r.Get("/members", handlers.ListMembers)
			r.Patch("/members/approve/{id}", handlers.ApproveMember)
			r.Post("/members/notify-expired/{id}", handlers.NotifyExpired)
			r.Get("/members/{id}", handlers.GetMember)
			r.Patch("/members/{id}", handlers.UpdateMember)
			r.Delete("/members/{id}", handlers.DeleteMember)

			r.Post("/admin/scheduler/run", handlers.RunScheduler)
		})
	})

	if receiptsDir != "" {
		prefix := "/" + strings.Trim(cfg.Receipts.URLPrefix, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix+"/", http.FileServer(receiptFS{http.Dir(receiptsDir)})))
	}

	return r
}

// receiptFS serves files only; directory listings are not exposed.
type receiptFS struct {
	fs http.FileSystem
}

func (f receiptFS) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
