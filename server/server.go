// Package server is the HTTP surface over the session, authentication,
// ledger, and app-inventory services.
package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gatekeeper-id/gatekeeper/apps"
	"github.com/gatekeeper-id/gatekeeper/authn"
	"github.com/gatekeeper-id/gatekeeper/clients"
	"github.com/gatekeeper-id/gatekeeper/internal/config"
	"github.com/gatekeeper-id/gatekeeper/ledger"
	"github.com/gatekeeper-id/gatekeeper/sessions"
	"github.com/gatekeeper-id/gatekeeper/users"
)

// Repos holds the repository dependencies for the Server.
type Repos struct {
	Sessions sessions.Repo
	Users    users.Repo
	Clients  clients.Repo
	Ledger   ledger.Repo
}

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config *config.Config
	repos  Repos
	authn  *authn.Authenticator
	apps   *apps.Service
}

func New(cfg *config.Config, repos Repos, authenticator *authn.Authenticator) (*Server, error) {
	if repos.Sessions == nil {
		return nil, fmt.Errorf("[server.New] sessions repo is required")
	}
	if repos.Users == nil {
		return nil, fmt.Errorf("[server.New] users repo is required")
	}
	if repos.Clients == nil {
		return nil, fmt.Errorf("[server.New] clients repo is required")
	}
	if repos.Ledger == nil {
		return nil, fmt.Errorf("[server.New] ledger repo is required")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("[server.New] authenticator is required")
	}

	inventory, err := apps.New(repos.Clients, repos.Ledger)
	if err != nil {
		return nil, fmt.Errorf("[server.New] app inventory: %w", err)
	}

	s := &Server{
		env:    cfg.Env,
		mux:    http.NewServeMux(),
		config: cfg,
		repos:  repos,
		authn:  authenticator,
		apps:   inventory,
	}
	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if !s.config.Dev() {
		return
	}
	for _, route := range s.routes {
		log.Debug().Str("route", route).Msg("registered")
	}
}
