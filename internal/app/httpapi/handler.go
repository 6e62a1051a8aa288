// Package httpapi exposes the REST surface of the application services.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/mealbridge/mealbridge/internal/app"
	"github.com/mealbridge/mealbridge/internal/app/domain/request"
	"github.com/mealbridge/mealbridge/internal/app/domain/user"
	"github.com/mealbridge/mealbridge/internal/app/metrics"
	"github.com/mealbridge/mealbridge/internal/app/services/donations"
	requestsvc "github.com/mealbridge/mealbridge/internal/app/services/requests"
	userssvc "github.com/mealbridge/mealbridge/internal/app/services/users"
	"github.com/mealbridge/mealbridge/internal/auth"
	"github.com/mealbridge/mealbridge/internal/errors"
	"github.com/mealbridge/mealbridge/internal/httputil"
	"github.com/mealbridge/mealbridge/internal/logging"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app    *app.Application
	tokens *auth.TokenManager
}

// NewHandler returns a router exposing the core REST API. Token issuance for
// register and login goes through tokens; request authentication is handled
// by the middleware layer in front of this router.
func NewHandler(application *app.Application, tokens *auth.TokenManager) *mux.Router {
	h := &handler{app: application, tokens: tokens}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/profile", h.profile).Methods(http.MethodGet)
	api.HandleFunc("/auth/profile", h.updateProfile).Methods(http.MethodPut)

	api.HandleFunc("/donations", h.createDonation).Methods(http.MethodPost)
	api.HandleFunc("/donations", h.listAvailableDonations).Methods(http.MethodGet)
	api.HandleFunc("/donations/my", h.listMyDonations).Methods(http.MethodGet)
	api.HandleFunc("/donations/claimed", h.listClaimedDonations).Methods(http.MethodGet)
	api.HandleFunc("/donations/{id}/accept", h.acceptDonation).Methods(http.MethodPut)
	api.HandleFunc("/donations/{id}/complete", h.completeDonation).Methods(http.MethodPut)
	api.HandleFunc("/donations/{id}", h.deleteDonation).Methods(http.MethodDelete)

	api.HandleFunc("/requests", h.createRequest).Methods(http.MethodPost)
	api.HandleFunc("/requests", h.listPendingRequests).Methods(http.MethodGet)
	api.HandleFunc("/requests/my", h.listMyRequests).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id}/fulfill", h.fulfillRequest).Methods(http.MethodPut)
	api.HandleFunc("/requests/{id}/cancel", h.cancelRequest).Methods(http.MethodPut)

	api.HandleFunc("/notifications", h.listNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/read", h.markNotificationRead).Methods(http.MethodPut)

	api.HandleFunc("/feedback", h.submitFeedback).Methods(http.MethodPost)
	api.HandleFunc("/feedback", h.listFeedback).Methods(http.MethodGet)
	api.HandleFunc("/feedback/my", h.listMyFeedback).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Auth ---------------------------------------------------------------------

type authResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name             string `json:"name"`
		Email            string `json:"email"`
		Password         string `json:"password"`
		Role             string `json:"role"`
		Phone            string `json:"phone"`
		Address          string `json:"address"`
		OrganizationName string `json:"organizationName"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation(err.Error()))
		return
	}

	usr, err := h.app.Users.Register(r.Context(), userssvc.RegisterParams{
		Name:             payload.Name,
		Email:            payload.Email,
		Password:         payload.Password,
		Role:             user.Role(payload.Role),
		Phone:            payload.Phone,
		Address:          payload.Address,
		OrganizationName: payload.OrganizationName,
	})
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	token, err := h.tokens.Issue(usr)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, authResponse{Token: token, User: usr})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation(err.Error()))
		return
	}

	usr, err := h.app.Users.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	token, err := h.tokens.Issue(usr)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, authResponse{Token: token, User: usr})
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	usr, err := h.app.Users.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, usr)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	var payload struct {
		Name             *string `json:"name"`
		Phone            *string `json:"phone"`
		Address          *string `json:"address"`
		OrganizationName *string `json:"organizationName"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation(err.Error()))
		return
	}

	usr, err := h.app.Users.UpdateProfile(r.Context(), userID, payload.Name, payload.Phone, payload.Address, payload.OrganizationName)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, usr)
}

// Donations ----------------------------------------------------------------

func (h *handler) createDonation(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	var payload struct {
		FoodType      string `json:"foodType"`
		Quantity      string `json:"quantity"`
		ExpiryTime    string `json:"expiryTime"`
		PickupAddress string `json:"pickupAddress"`
		Description   string `json:"description"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation(err.Error()))
		return
	}

	don, err := h.app.Donations.Create(r.Context(), userID, donations.CreateParams{
		FoodType:      payload.FoodType,
		Quantity:      payload.Quantity,
		ExpiryTime:    payload.ExpiryTime,
		PickupAddress: payload.PickupAddress,
		Description:   payload.Description,
	})
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, don)
}

func (h *handler) listAvailableDonations(w http.ResponseWriter, r *http.Request) {
	dons, err := h.app.Donations.ListAvailable(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dons)
}

func (h *handler) listMyDonations(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	dons, err := h.app.Donations.ListByDonor(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dons)
}

func (h *handler) listClaimedDonations(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	dons, err := h.app.Donations.ListByClaimant(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dons)
}

func (h *handler) acceptDonation(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	don, err := h.app.Donations.Accept(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	metrics.RecordDonationTransition(string(don.Status))
	httputil.WriteJSON(w, http.StatusOK, don)
}

func (h *handler) completeDonation(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	don, err := h.app.Donations.Complete(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	metrics.RecordDonationTransition(string(don.Status))
	httputil.WriteJSON(w, http.StatusOK, don)
}

func (h *handler) deleteDonation(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	if err := h.app.Donations.Delete(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Requests -----------------------------------------------------------------

func (h *handler) createRequest(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	var payload struct {
		FoodType    string `json:"foodType"`
		Quantity    string `json:"quantity"`
		Urgency     string `json:"urgency"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation(err.Error()))
		return
	}

	req, err := h.app.Requests.Create(r.Context(), userID, requestsvc.CreateParams{
		FoodType:    payload.FoodType,
		Quantity:    payload.Quantity,
		Urgency:     request.Urgency(strings.ToLower(payload.Urgency)),
		Description: payload.Description,
	})
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, req)
}

func (h *handler) listPendingRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.app.Requests.ListPending(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reqs)
}

func (h *handler) listMyRequests(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	reqs, err := h.app.Requests.ListByRecipient(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reqs)
}

func (h *handler) fulfillRequest(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	req, err := h.app.Requests.Fulfill(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	metrics.RecordRequestTransition(string(req.Status))
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *handler) cancelRequest(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	req, err := h.app.Requests.Cancel(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	metrics.RecordRequestTransition(string(req.Status))
	httputil.WriteJSON(w, http.StatusOK, req)
}

// Notifications ------------------------------------------------------------

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	notes, err := h.app.Notifications.ListFor(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, notes)
}

func (h *handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	note, err := h.app.Notifications.MarkRead(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, note)
}

// Feedback -----------------------------------------------------------------

func (h *handler) submitFeedback(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	var payload struct {
		Rating  int    `json:"rating"`
		Message string `json:"message"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation(err.Error()))
		return
	}

	fb, err := h.app.Feedback.Submit(r.Context(), userID, payload.Rating, payload.Message)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fb)
}

func (h *handler) listFeedback(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteServiceError(w, errors.Validation("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	entries, err := h.app.Feedback.ListAll(r.Context(), limit)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *handler) listMyFeedback(w http.ResponseWriter, r *http.Request) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		httputil.Unauthorized(w, "")
		return
	}

	entries, err := h.app.Feedback.ListFor(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
