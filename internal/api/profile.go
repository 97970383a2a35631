package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vuddy-labs/vuddy/internal/domain"
	"github.com/vuddy-labs/vuddy/internal/profile"
	"github.com/vuddy-labs/vuddy/internal/school"
)

// ProfileService loads and updates the user profile.
type ProfileService interface {
	GetProfile(ctx context.Context) (*domain.Profile, error)
	Update(ctx context.Context, u profile.Update) (*domain.Profile, error)
}

// SchoolRegistry exposes the assistant personas.
type SchoolRegistry interface {
	Active() school.School
	List() []school.School
	Set(id string) (school.School, error)
}

// ProfileHandler serves profile and school endpoints.
type ProfileHandler struct {
	profiles ProfileService
	schools  SchoolRegistry
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(profiles ProfileService, schools SchoolRegistry) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, schools: schools}
}

// RegisterRoutes registers profile and school routes.
func (h *ProfileHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/profile", h.GetProfile)
		r.Put("/profile", h.UpdateProfile)
		r.Get("/schools", h.ListSchools)
		r.Get("/school", h.GetSchool)
		r.Put("/school", h.SetSchool)
	})
}

// GetProfile returns the stored profile.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.GetProfile(r.Context())
	if err != nil {
		slog.Error("Failed to load profile", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	JSON(w, http.StatusOK, p)
}

// UpdateProfile merges the provided fields into the profile.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var u profile.Update
	if err := decodeJSON(w, r, &u); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.profiles.Update(r.Context(), u)
	if err != nil {
		slog.Error("Failed to update profile", "error", err)
		Error(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	JSON(w, http.StatusOK, p)
}

// ListSchools returns every supported school.
func (h *ProfileHandler) ListSchools(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"schools": h.schools.List(),
		"active":  h.schools.Active().ID,
	})
}

// GetSchool returns the active school.
func (h *ProfileHandler) GetSchool(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.schools.Active())
}

type setSchoolRequest struct {
	School string `json:"school"`
}

// SetSchool switches the active school. Open sessions drop their history
// before their next turn.
func (h *ProfileHandler) SetSchool(w http.ResponseWriter, r *http.Request) {
	var req setSchoolRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.schools.Set(req.School)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.Info("Active school changed", "school", s.ID)
	JSON(w, http.StatusOK, s)
}
