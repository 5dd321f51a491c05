/**
 * @description
 * This file contains the HTTP handlers for the subscription service's API.
 * Handlers parse incoming requests, call the application services with the
 * verified caller and write the JSON envelope back.
 */
package api

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/seacatering/subscription-service/internal/analytics"
	"github.com/seacatering/subscription-service/internal/app"
	"github.com/seacatering/subscription-service/internal/domain"
	ierr "github.com/seacatering/subscription-service/internal/errors"
	"github.com/seacatering/subscription-service/internal/pricing"
	"github.com/seacatering/subscription-service/internal/security"
)

// Handler holds the application services that handlers use.
type Handler struct {
	subscriptions *app.SubscriptionService
	testimonials  *app.TestimonialService
	auth          *app.AuthService
	csrf          *security.CSRFManager
	retryAfter    time.Duration
	logger        *slog.Logger
}

// NewHandler creates the handler set. auth may be nil when no auth provider
// is configured; the sign-up and sign-in routes are then not mounted.
func NewHandler(subs *app.SubscriptionService, testimonials *app.TestimonialService, auth *app.AuthService, csrf *security.CSRFManager, retryAfter time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		subscriptions: subs,
		testimonials:  testimonials,
		auth:          auth,
		csrf:          csrf,
		retryAfter:    retryAfter,
		logger:        logger,
	}
}

type planView struct {
	domain.Plan
	FormattedPrice string `json:"formatted_price"`
}

type catalogResponse struct {
	Plans        []planView           `json:"plans"`
	MealTypes    []domain.MealType    `json:"meal_types"`
	DeliveryDays []domain.DeliveryDay `json:"delivery_days"`
}

func (h *Handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans := domain.Plans()
	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		views = append(views, planView{Plan: p, FormattedPrice: pricing.FormatRupiah(p.UnitPrice)})
	}
	respondWithData(w, http.StatusOK, catalogResponse{
		Plans:        views,
		MealTypes:    domain.MealTypes,
		DeliveryDays: domain.DeliveryDays,
	})
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var in domain.QuoteInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, pricing.Quote(in))
}

func (h *Handler) handleIssueCSRFToken(w http.ResponseWriter, r *http.Request) {
	caller := CallerFrom(r.Context())
	token, err := h.csrf.Issue(r.Context(), caller.UserID)
	if err != nil {
		h.respondWithError(w, r, ierr.WithError(err).Mark(ierr.ErrSystem))
		return
	}
	w.Header().Set(CSRFHeader, token)
	respondWithData(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in domain.SignUpInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	session, err := h.auth.SignUp(r.Context(), in)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, session)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in domain.SignInInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	session, err := h.auth.SignIn(r.Context(), in)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, session)
}

func (h *Handler) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateSubscriptionInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	sub, err := h.subscriptions.Create(r.Context(), CallerFrom(r.Context()), in)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, sub)
}

func (h *Handler) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscriptions.List(r.Context(), CallerFrom(r.Context()))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, subs)
}

func (h *Handler) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	sub, err := h.subscriptions.Get(r.Context(), CallerFrom(r.Context()), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, sub)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	var in domain.PauseInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	sub, err := h.subscriptions.Pause(r.Context(), CallerFrom(r.Context()), id, in)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, sub)
}

// transitionHandler adapts the lifecycle operations that take no body.
func (h *Handler) transitionHandler(op func(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.Subscription, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.respondWithError(w, r, err)
			return
		}
		sub, err := op(r.Context(), CallerFrom(r.Context()), id)
		if err != nil {
			h.respondWithError(w, r, err)
			return
		}
		respondWithData(w, http.StatusOK, sub)
	}
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	var in domain.UpdateStatusInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	sub, err := h.subscriptions.UpdateStatus(r.Context(), CallerFrom(r.Context()), id, in)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, sub)
}

func (h *Handler) handleListApprovedTestimonials(w http.ResponseWriter, r *http.Request) {
	list, err := h.testimonials.ListApproved(r.Context())
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, list)
}

func (h *Handler) handleListMyTestimonials(w http.ResponseWriter, r *http.Request) {
	list, err := h.testimonials.ListMine(r.Context(), CallerFrom(r.Context()))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, list)
}

func (h *Handler) handleSubmitTestimonial(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateTestimonialInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	t, err := h.testimonials.Submit(r.Context(), CallerFrom(r.Context()), in)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, t)
}

func (h *Handler) handleListAllTestimonials(w http.ResponseWriter, r *http.Request) {
	list, err := h.testimonials.ListAll(r.Context(), CallerFrom(r.Context()))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, list)
}

func (h *Handler) handleApproveTestimonial(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	t, err := h.testimonials.Approve(r.Context(), CallerFrom(r.Context()), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, t)
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m, err := h.subscriptions.Metrics(r.Context(), CallerFrom(r.Context()), q.Get("start"), q.Get("end"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, m)
}

func (h *Handler) handleMetricsCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m, err := h.subscriptions.Metrics(r.Context(), CallerFrom(r.Context()), q.Get("start"), q.Get("end"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := analytics.WriteCSV(&buf, m); err != nil {
		h.respondWithError(w, r, ierr.WithError(err).Mark(ierr.ErrSystem))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+analytics.ExportFilename(m.Window)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ierr.WithError(err).
			WithHint("Invalid identifier.").
			WithReportableDetails(map[string]any{"id": "must be a UUID"}).
			Mark(ierr.ErrValidation)
	}
	return id, nil
}
