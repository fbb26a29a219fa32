package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"chatcal/internal/chat"
	"chatcal/internal/models"
	"chatcal/internal/tokens"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"
)

const (
	stateCookie       = "chatcal_oauth_state"
	maxMessageBytes   = 16 << 10
	defaultEventsDays = 7
)

type chatRequest struct {
	Message string `json:"message"`
	Persona string `json:"persona"`
}

type chatResponse struct {
	Response string     `json:"response"`
	State    chat.State `json:"state"`
	Attempts int        `json:"attempts"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply := s.responder.Respond(r.Context(), chat.Request{
		Persona:  req.Persona,
		Message:  req.Message,
		Identity: identityFrom(r.Context()),
	})
	writeJSON(w, http.StatusOK, chatResponse{Response: reply.Text, State: reply.State, Attempts: reply.Attempts})
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.responder.Personas())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	_, err := s.token(r)
	if err != nil && !errors.Is(err, tokens.ErrNotFound) {
		s.logger.Error("Token lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "token lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authorized": err == nil})
}

// token returns the caller's stored token, treating an empty access token as absent.
func (s *Server) token(r *http.Request) (*oauth2.Token, error) {
	tok, err := s.tokens.Token(r.Context(), identityFrom(r.Context()))
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, tokens.ErrNotFound
	}
	return tok, nil
}

func (s *Server) requireToken(w http.ResponseWriter, r *http.Request) (*oauth2.Token, bool) {
	tok, err := s.token(r)
	if errors.Is(err, tokens.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, chat.AuthorizationNeededMessage)
		return nil, false
	}
	if err != nil {
		s.logger.Error("Token lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "token lookup failed")
		return nil, false
	}
	return tok, true
}

type eventResponse struct {
	ID          string           `json:"id"`
	Summary     string           `json:"summary"`
	Description string           `json:"description,omitempty"`
	Location    string           `json:"location,omitempty"`
	Start       models.EventTime `json:"start"`
	End         models.EventTime `json:"end"`
	HTMLLink    string           `json:"htmlLink,omitempty"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	tok, ok := s.requireToken(w, r)
	if !ok {
		return
	}
	days := defaultEventsDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	events, err := s.events.UpcomingEvents(r.Context(), tok, days)
	if err != nil {
		s.logger.Error("Listing events failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to list events")
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			ID:          e.ID,
			Summary:     e.Summary,
			Description: e.Description,
			Location:    e.Location,
			Start:       e.Start,
			End:         e.End,
			HTMLLink:    e.HTMLLink,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	tok, ok := s.requireToken(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.events.DeleteEvent(r.Context(), tok, id); err != nil {
		s.logger.Error("Deleting event failed", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, "failed to delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})
	http.Redirect(w, r, s.auth.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeError(w, http.StatusBadRequest, "authorization denied: "+e)
		return
	}
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		writeError(w, http.StatusBadRequest, "invalid OAuth state")
		return
	}
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := s.auth.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Error("OAuth exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to exchange authorization code")
		return
	}
	identity := identityFrom(r.Context())
	if err := s.tokens.Save(r.Context(), identity, token); err != nil {
		s.logger.Error("Saving token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save token")
		return
	}

	s.logger.Info("Google Calendar authorized", "identity", identity)
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/google", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogout forgets the session's Google token. The session cookie itself is kept.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	if err := s.tokens.Delete(r.Context(), identity); err != nil {
		s.logger.Error("Deleting token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove authorization")
		return
	}
	s.logger.Info("Google Calendar authorization removed", "identity", identity)
	w.WriteHeader(http.StatusNoContent)
}
