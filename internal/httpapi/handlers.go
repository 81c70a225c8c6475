// internal/httpapi/handlers.go
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fusionlobby/flb/internal/lobby"
	"github.com/fusionlobby/flb/internal/thumbnail"
)

// lobbyListResponse is the wire shape of /lobbylist. Field names are
// stable; clients depend on them.
type lobbyListResponse struct {
	Lobbies     []*lobby.Record `json:"lobbies"`
	Date        time.Time       `json:"date"`
	PlayerCount playerCount     `json:"playerCount"`
	Interval    int             `json:"interval"`
}

type playerCount struct {
	Players int `json:"players"`
	Lobbies int `json:"lobbies"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.handler.IsReady() {
		http.Error(w, "Server is not connected to the platform.", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleLobbyList(w http.ResponseWriter, r *http.Request) {
	if !s.handler.IsReady() {
		http.Error(w, "Server is not connected to the platform.", http.StatusServiceUnavailable)
		return
	}

	snap := s.directory.Snapshot()
	resp := lobbyListResponse{
		Lobbies: snap.Lobbies,
		Date:    snap.CapturedAt,
		PlayerCount: playerCount{
			Players: snap.PlayerCount,
			Lobbies: snap.LobbyCount,
		},
		Interval: int(s.directory.Interval() / time.Second),
	}
	if resp.Lobbies == nil {
		resp.Lobbies = []*lobby.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.WithError(err).Error("failed to encode lobby list response")
	}
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "modID")
	modID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "modID is not valid.", http.StatusBadRequest)
		return
	}

	if !s.handler.IsReady() {
		http.Error(w, "Server is not connected to the platform.", http.StatusServiceUnavailable)
		return
	}

	entry, err := s.thumbs.Get(r.Context(), modID)
	if errors.Is(err, thumbnail.ErrNotFound) {
		http.Error(w, "Thumbnail not found.", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.WithError(err).Errorf("error fetching thumbnail for %d", modID)
		http.Error(w, "An error occurred while fetching the thumbnail", http.StatusInternalServerError)
		return
	}

	data, err := os.ReadFile(entry.Path)
	if err != nil {
		// The cache is advisory; the file may have been expired out
		// from under us. Treat it as a miss.
		s.log.WithError(err).Warnf("cached thumbnail for %d vanished", modID)
		http.Error(w, "Thumbnail not found.", http.StatusNotFound)
		return
	}

	maturity := "safe"
	if entry.Mature {
		maturity = "nsfw"
	}
	w.Header().Set("Access-Control-Expose-Headers", "ModIO-Maturity, Server-Uptime")
	w.Header().Set("ModIO-Maturity", maturity)
	w.Header().Set("Server-Uptime", strconv.FormatInt(s.uptime.Unix(), 10))
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(data)
}
