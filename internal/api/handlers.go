package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yangwenmai/leadsniper/internal/apperr"
	"github.com/yangwenmai/leadsniper/internal/leads"
	"github.com/yangwenmai/leadsniper/internal/model"
)

// ---------------------------------------------------------------------------
// GET /health
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "leadsniper"})
}

// ---------------------------------------------------------------------------
// POST /api/process
// ---------------------------------------------------------------------------

type processRequest struct {
	Lead *model.RawLead `json:"lead_data" validate:"required"`
}

// processResponse is the answer to a single processing call.
type processResponse struct {
	Status          string                `json:"status"`
	LeadID          string                `json:"lead_id"`
	Lead            model.ProcessedLead   `json:"lead"`
	BuyabilityScore *float64              `json:"buyability_score"`
	IsHighValue     bool                  `json:"is_high_value"`
	ProtectedAsset  *model.ProtectedAsset `json:"protected_asset"`
	Notification    *model.Notification   `json:"notification"`
	Message         string                `json:"message"`
}

func (s *Server) newProcessResponse(res *leads.ProcessResult) processResponse {
	out := processResponse{
		Status:          "success",
		LeadID:          res.Lead.LeadID,
		Lead:            res.Lead,
		BuyabilityScore: res.Lead.BuyabilityScore,
		IsHighValue:     res.Lead.IsHighValue(s.svc.Threshold()),
		ProtectedAsset:  res.Asset,
		Notification:    res.Notification,
		Message:         "Lead processed successfully",
	}
	if res.Lead.Status == model.StatusError {
		out.Status = "error"
		out.Message = "Processing failed"
		if res.Lead.Error != nil {
			out.Message = "Processing failed: " + res.Lead.Error.Message
		}
	}
	return out
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.Submit(r.Context(), *req.Lead)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.newProcessResponse(res))
}

// ---------------------------------------------------------------------------
// POST /api/process-batch
// ---------------------------------------------------------------------------

type batchRequest struct {
	Leads        []model.RawLead `json:"leads" validate:"required,min=1,max=50"`
	ProcessLimit int             `json:"process_limit" validate:"gte=0,lte=50"`
}

func (s *Server) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.SubmitBatch(r.Context(), req.Leads, req.ProcessLimit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---------------------------------------------------------------------------
// POST /api/process-url
// ---------------------------------------------------------------------------

type urlRequest struct {
	URL    string `json:"url" validate:"required,http_url"`
	Source string `json:"source" validate:"omitempty,max=50"`
}

func (s *Server) handleProcessURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.SubmitURL(r.Context(), req.URL, req.Source)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.newProcessResponse(res))
}

// ---------------------------------------------------------------------------
// POST /api/validate
// ---------------------------------------------------------------------------

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Validate(*req.Lead))
}

// ---------------------------------------------------------------------------
// GET /api/leads, GET /api/protected-assets
// ---------------------------------------------------------------------------

// pageParams reads offset and limit from the query string.
func pageParams(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, apperr.Validation("offset must be a non-negative integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, apperr.Validation("limit must be a positive integer")
		}
	}
	return offset, limit, nil
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pageParams(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	page, err := s.svc.List(r.Context(), offset, limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleProtectedAssets(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pageParams(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	page, err := s.svc.ListProtected(r.Context(), offset, limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":            page.Total,
		"limit":            page.Limit,
		"offset":           page.Offset,
		"protected_assets": page.Leads,
	})
}

// ---------------------------------------------------------------------------
// GET /api/leads/{id}
// ---------------------------------------------------------------------------

// accessToken reads the access token from the query string or X-Access-Token header.
func accessToken(r *http.Request) string {
	if t := r.URL.Query().Get("access_token"); t != "" {
		return t
	}
	return r.Header.Get("X-Access-Token")
}

// leadResponse is a full lead, with its protected asset once paid for.
type leadResponse struct {
	model.ProcessedLead
	ProtectedAsset *model.ProtectedAsset `json:"protected_asset,omitempty"`
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"), accessToken(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if view.Locked != nil {
		writeJSON(w, http.StatusOK, view.Locked)
		return
	}
	writeJSON(w, http.StatusOK, leadResponse{ProcessedLead: *view.Lead, ProtectedAsset: view.Asset})
}

// ---------------------------------------------------------------------------
// DELETE /api/leads/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleDeleteLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Delete(r.Context(), id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": fmt.Sprintf("Lead %s deleted", id)})
}

// ---------------------------------------------------------------------------
// GET /api/leads/{id}/payment-status
// ---------------------------------------------------------------------------

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.PaymentStatus(r.Context(), chi.URLParam(r, "id"), accessToken(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ---------------------------------------------------------------------------
// POST /api/unlock
// ---------------------------------------------------------------------------

type unlockRequest struct {
	LeadID        string `json:"lead_id" validate:"required,max=128"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,max=50"`
	PaymentToken  string `json:"payment_token" validate:"omitempty,max=512"`
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	res, err := s.svc.Unlock(r.Context(), req.LeadID, req.PaymentMethod, req.PaymentToken)
	if err != nil {
		if apperr.Is(err, apperr.KindPayment) && res != nil {
			writeJSON(w, http.StatusPaymentRequired, map[string]any{
				"error":    res.Message,
				"kind":     apperr.KindPayment.String(),
				"lead_id":  res.LeadID,
				"unlocked": false,
			})
			return
		}
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"lead_id":      res.LeadID,
		"unlocked":     res.Unlocked,
		"access_token": res.AccessToken,
		"payment_id":   res.PaymentID,
		"message":      res.Message,
	})
}

// ---------------------------------------------------------------------------
// GET /api/stats, GET /api/notifications
// ---------------------------------------------------------------------------

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	items := []model.Notification{}
	if s.feed != nil {
		items = s.feed.Recent()
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}
