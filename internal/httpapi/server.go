// internal/httpapi/server.go
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/fusionlobby/flb/internal/lobby"
	"github.com/fusionlobby/flb/internal/middleware"
	"github.com/fusionlobby/flb/internal/platform"
	"github.com/fusionlobby/flb/internal/thumbnail"
)

// Server wires the read endpoints to the live components.
type Server struct {
	log       *logrus.Logger
	handler   platform.Handler
	directory *lobby.Directory
	thumbs    *thumbnail.Cache
	uptime    time.Time
}

// NewServer builds the HTTP surface. uptime is when the session was
// first established; it is reported in thumbnail response headers.
func NewServer(log *logrus.Logger, handler platform.Handler, directory *lobby.Directory, thumbs *thumbnail.Cache, uptime time.Time) *Server {
	return &Server{
		log:       log,
		handler:   handler,
		directory: directory,
		thumbs:    thumbs,
		uptime:    uptime,
	}
}

// Routes assembles the router with logging and CORS applied.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.LogMiddleware(s.log))
	r.Use(middleware.CORS)

	r.Get("/", s.handleHealth)
	r.Get("/lobbylist", s.handleLobbyList)
	r.Get("/thumbnail/{modID}", s.handleThumbnail)
	return r
}
