// Package httpapi wires AttrOps, FileOps, IOOps, and the authentication
// bridge behind the HTTP route table, using chi for routing and the
// reserved-file side channel for in-process identity bootstrap.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openrfs/rfsd/internal/attrops"
	"github.com/openrfs/rfsd/internal/authbridge"
	"github.com/openrfs/rfsd/internal/backingstore"
	"github.com/openrfs/rfsd/internal/fileops"
	"github.com/openrfs/rfsd/internal/ioops"
	"github.com/openrfs/rfsd/internal/logger"
	"github.com/openrfs/rfsd/internal/metastore"
	"github.com/openrfs/rfsd/internal/reserved"
	"github.com/openrfs/rfsd/pkg/httpapi/handlers"
	httpmw "github.com/openrfs/rfsd/pkg/httpapi/middleware"
)

// Deps bundles the collaborators the router wires into handlers.
type Deps struct {
	Meta    *metastore.Store
	Backing *backingstore.Store
	Attr    *attrops.Ops
	Files   *fileops.Ops
	IO      *ioops.Ops
	Auth    *authbridge.Bridge
}

// NewRouter builds the chi router for the full /api surface described in
// the route table: directories, files, links, symlinks, and free space.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(httpmw.Authenticate(deps.Auth, handlers.WriteUnauthorized))

	dirHandler := handlers.NewDirectories(deps.Attr, deps.Files)
	reservedHandler := reserved.New(deps.Auth)
	fileHandler := handlers.NewFiles(deps.Attr, deps.IO, reservedHandler, deps.Meta)
	linkHandler := handlers.NewLinks(deps.Files)
	sizeHandler := handlers.NewSize(deps.Backing)

	r.Route("/api", func(r chi.Router) {
		r.Route("/directories/{parentIno}", func(r chi.Router) {
			r.Get("/entries", dirHandler.Entries)
			r.Get("/entries/lookup", dirHandler.Lookup)
			r.Post("/dirs/{name}", dirHandler.Mkdir)
			r.Delete("/dirs/{name}", dirHandler.Rmdir)
			r.Post("/files/{name}", dirHandler.Create)
			r.Delete("/files/{name}", dirHandler.Unlink)
		})
		r.Patch("/directories/{oldParentIno}/entries/{oldName}", dirHandler.Rename)

		r.Get("/files/stream/{ino}", fileHandler.ReadStream)
		r.Put("/files/stream/{ino}", fileHandler.WriteStream)
		r.Get("/files/{ino}/attributes", fileHandler.Getattr)
		r.Patch("/files/{ino}/attributes", fileHandler.Setattr)
		r.Get("/files/{ino}", fileHandler.Read)
		r.Put("/files/{ino}", fileHandler.Write)

		r.Post("/links/{targetIno}", linkHandler.Hardlink)
		r.Post("/symlinks", linkHandler.Symlink)
		r.Get("/symlinks/{ino}", linkHandler.Readlink)

		r.Get("/size", sizeHandler.FreeSpace)
	})

	return r
}

// requestLogger logs request start at DEBUG and completion at INFO,
// mirroring the structured logging pattern used across the server.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
