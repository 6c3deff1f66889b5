package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pawplan/internal/domain"
	"pawplan/internal/domain/model"
	"pawplan/internal/usecase"
)

func (s *Server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Quotes.Recipes()})
}

// handleQuote reports pricing problems as 422 so the calculator can show the message as is.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req usecase.QuoteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q, err := s.Quotes.Quote(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type deliveryCheckRequest struct {
	ZipCode string `json:"zip_code"`
}

func (s *Server) handleDeliveryCheck(w http.ResponseWriter, r *http.Request) {
	var req deliveryCheckRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, s.Zips.Check(req.ZipCode))
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.Plans.CreateDraft(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPlanView(p, nil, p.IsGuest()))
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	v, err := s.Plans.Get(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), r.Header.Get(ClaimTokenHeader))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlanView(v.Plan, v.Quotes, false))
}

func (s *Server) handleAddDog(w http.ResponseWriter, r *http.Request) {
	var req usecase.AddDogRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := s.Plans.AddDog(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), r.Header.Get(ClaimTokenHeader), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPlanView(p, nil, false))
}

type checkoutResponse struct {
	PlanID      string `json:"plan_id"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req usecase.StartCheckoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.Plans.StartCheckout(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{PlanID: res.Plan.ID, SessionID: res.SessionID, RedirectURL: res.RedirectURL})
}

type claimRequest struct {
	PlanID     string `json:"plan_id"`
	ClaimToken string `json:"claim_token"`
}

func (s *Server) handleClaimPlan(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decode(r, &req); err != nil || req.PlanID == "" || req.ClaimToken == "" {
		writeError(w, http.StatusBadRequest, "plan_id and claim_token are required")
		return
	}
	p, err := s.Plans.Claim(r.Context(), IdentityFrom(r.Context()), req.PlanID, req.ClaimToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlanView(p, nil, false))
}

func (s *Server) handleCancelPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.Plans.Cancel(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), r.Header.Get(ClaimTokenHeader))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlanView(p, nil, false))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orders, err := s.Orders.ListMine(r.Context(), IdentityFrom(r.Context()), offset, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]orderView, 0, len(orders))
	for _, o := range orders {
		items = append(items, newOrderView(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	to, err := model.ParseFulfillmentStatus(req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.Orders.UpdateStatus(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"), to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(o))
}

// handleStripeWebhook answers 5xx only when the provider should redeliver.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	err = s.Webhooks.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusBadRequest, "invalid signature")
	default:
		s.logFor(r).Error().Err(err).Msg("webhook will be redelivered")
		writeError(w, http.StatusInternalServerError, "retry later")
	}
}
