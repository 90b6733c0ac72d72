package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/edigar/sales-control/internal/domain"
	"github.com/edigar/sales-control/internal/jobs"
)

const maxPageSize = 100

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if status, err := a.decodeAndValidate(r, &req); err != nil {
		a.writeError(w, status, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    actor.UserID,
		"email": actor.Email,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	resp, err := a.auth.Refresh(actor)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var input domain.UserInput
	if status, err := a.decodeAndValidate(r, &input); err != nil {
		a.writeError(w, status, err)
		return
	}

	user, err := a.users.CreateUser(r.Context(), input)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.GetAllUsers(r.Context())
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleListSellers(w http.ResponseWriter, r *http.Request) {
	page, err := a.sellers.GetAllSellers(r.Context(), perPage(r))
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleCreateSeller(w http.ResponseWriter, r *http.Request) {
	var input domain.SellerInput
	if status, err := a.decodeAndValidate(r, &input); err != nil {
		a.writeError(w, status, err)
		return
	}

	seller, err := a.sellers.CreateSeller(r.Context(), input)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"seller": seller})
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	page, err := a.sales.GetAllSales(r.Context(), perPage(r))
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleSalesBySeller(w http.ResponseWriter, r *http.Request) {
	sellerID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || sellerID < 1 {
		a.writeError(w, http.StatusBadRequest, errors.New("seller id must be a positive integer"))
		return
	}

	page, err := a.sales.GetSalesBySeller(r.Context(), sellerID, perPage(r))
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var input domain.SaleInput
	if status, err := a.decodeAndValidate(r, &input); err != nil {
		a.writeError(w, status, err)
		return
	}

	sale, err := a.sales.CreateSale(r.Context(), input)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

// handleTriggerDailyReports dispatches the admin job and then the seller job.
func (a *API) handleTriggerDailyReports(w http.ResponseWriter, r *http.Request) {
	// An empty body means today, asynchronously.
	var req domain.ReportTriggerRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.writeError(w, http.StatusUnprocessableEntity, validationError(err))
		return
	}

	runs := make(map[string]string, 2)
	for _, job := range []string{jobs.AdminReportJobName, jobs.SellerReportJobName} {
		runID, err := a.reports.Dispatch(r.Context(), job, req.Date, req.Sync)
		if err != nil {
			a.writeError(w, statusFor(err), err)
			return
		}
		runs[job] = runID
	}

	status := http.StatusAccepted
	if req.Sync {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"date": req.Date,
		"sync": req.Sync,
		"runs": runs,
	})
}

func perPage(r *http.Request) int {
	return parsePositiveLimit(r.URL.Query().Get("per_page"), 0, maxPageSize)
}
