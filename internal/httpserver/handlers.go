package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	authdomain "accounts/backend/internal/domain/auth"
	orgdomain "accounts/backend/internal/domain/organisation"
	authusecase "accounts/backend/internal/usecase/auth"
	orgusecase "accounts/backend/internal/usecase/organisation"
	"accounts/backend/internal/usecase/validation"
)

func (s *Server) registerRoutes() {
	s.router.Handle("/health", http.HandlerFunc(s.handleHealth))
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
	s.router.Handle("/auth/register", http.HandlerFunc(s.handleRegister))
	s.router.Handle("/auth/login", http.HandlerFunc(s.handleLogin))

	guard := s.gate.Guard
	s.router.Handle("/api/users/{id}", guard(s.handleUserByID))
	s.router.Handle("/api/organisations", guard(s.handleOrganisations))
	s.router.Handle("/api/organisations/{orgId}", guard(s.handleOrganisationByID))
	s.router.Handle("/api/organisations/{orgId}/users", guard(s.handleOrganisationUsers))
}

type userData struct {
	AccessToken string           `json:"access_token"`
	User        *authdomain.User `json:"user"`
}

type organisationList struct {
	Organisations []*orgdomain.Organisation `json:"organisations"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload authusecase.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	token, user, err := s.authService.Register(r.Context(), payload)
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.As(err, &verrs):
			writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Errors: verrs})
		case errors.Is(err, authdomain.ErrEmailExists):
			writeStatus(w, http.StatusBadRequest, "Bad Request", "Registration unsuccessful")
		default:
			s.internalError(w, r, "register", err)
		}
		return
	}

	s.setTokenCookie(w, token)
	writeJSON(w, http.StatusCreated, envelope{
		Status:  "success",
		Message: "Registration successful",
		Data:    userData{AccessToken: token, User: user},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	token, user, err := s.authService.Login(r.Context(), authdomain.Credentials{
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		if errors.Is(err, authdomain.ErrInvalidCredentials) {
			writeUnauthorized(w)
			return
		}
		s.internalError(w, r, "login", err)
		return
	}

	s.setTokenCookie(w, token)
	writeJSON(w, http.StatusOK, envelope{
		Status:  "success",
		Message: "Login successful",
		Data:    userData{AccessToken: token, User: user},
	})
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request, identity string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	user, err := s.userService.Get(r.Context(), identity, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, authdomain.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, messageResponse{Message: "User not found"})
			return
		}
		s.internalError(w, r, "get user", err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "User found", Data: user})
}

func (s *Server) handleOrganisations(w http.ResponseWriter, r *http.Request, identity string) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		orgs, err := s.orgService.ListForUser(ctx, identity)
		if err != nil {
			s.internalError(w, r, "list organisations", err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{
			Status:  "success",
			Message: "organization fetched",
			Data:    organisationList{Organisations: orgs},
		})
	case http.MethodPost:
		var payload orgusecase.CreateInput
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		org, err := s.orgService.Create(ctx, identity, payload)
		if err != nil {
			var verrs validation.Errors
			switch {
			case errors.As(err, &verrs):
				writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Errors: verrs})
			case errors.Is(err, orgdomain.ErrDuplicateName):
				writeStatus(w, http.StatusBadRequest, "Unsuccessful request", "Client error")
			case errors.Is(err, authdomain.ErrUserNotFound):
				writeUnauthorized(w)
			default:
				s.internalError(w, r, "create organisation", err)
			}
			return
		}
		writeJSON(w, http.StatusCreated, envelope{
			Status:  "Success",
			Message: "Organisation created successfully",
			Data:    org,
		})
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleOrganisationByID(w http.ResponseWriter, r *http.Request, identity string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	org, err := s.orgService.Get(r.Context(), identity, r.PathValue("orgId"))
	if err != nil {
		if errors.Is(err, orgdomain.ErrNotFound) {
			writeStatus(w, http.StatusNotFound, "Bad request", "Organisation Not Found")
			return
		}
		s.internalError(w, r, "get organisation", err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "Organization found", Data: org})
}

func (s *Server) handleOrganisationUsers(w http.ResponseWriter, r *http.Request, identity string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	err := s.orgService.AddMember(r.Context(), identity, r.PathValue("orgId"), payload.UserID)
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.As(err, &verrs):
			writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Errors: verrs})
		case errors.Is(err, orgdomain.ErrNotFound):
			writeStatus(w, http.StatusNotFound, "Bad Request", "organization not found")
		case errors.Is(err, authdomain.ErrUserNotFound):
			writeStatus(w, http.StatusNotFound, "Bad Request", "user not found")
		default:
			s.internalError(w, r, "add organisation member", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "User added to organisation successfully"})
}

func (s *Server) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(s.cookieTTL),
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	s.logger.ErrorContext(r.Context(), "request failed", "operation", operation, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
