package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"streamgen/pkg/types"
)

// modelCardHandler godoc
// @Summary      Model card
// @Description  Describes the model served by this instance.
// @Tags         generation
// @Produce      json
// @Success      200  {object}  types.ModelCard
// @Router       /model_card [get]
func modelCardHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.ModelCard())
	}
}

// recentHandler godoc
// @Summary      Recent requests
// @Description  Lists recently finished requests from the journal, newest first.
// @Tags         requests
// @Produce      json
// @Param        limit  query     int  false  "maximum entries (default 50)"
// @Success      200    {object}  types.RequestsResponse
// @Failure      400    {object}  types.ErrorResponse
// @Failure      404    {object}  types.ErrorResponse  "journal disabled"
// @Router       /requests [get]
func recentHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		reqs, err := svc.Recent(r.Context(), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if reqs == nil {
			reqs = []types.RequestStatus{}
		}
		writeJSON(w, types.RequestsResponse{Requests: reqs})
	}
}

// lookupHandler godoc
// @Summary      Request status
// @Description  Reports a queued, running or recently finished request.
// @Tags         requests
// @Produce      json
// @Param        id   path      string  true  "request id"
// @Success      200  {object}  types.RequestStatus
// @Failure      404  {object}  types.ErrorResponse
// @Router       /requests/{id} [get]
func lookupHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Lookup(chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, st)
	}
}

// cancelHandler godoc
// @Summary      Cancel a request
// @Description  Cancels a queued or running request. Cancelling a finished request is a no-op.
// @Tags         requests
// @Produce      json
// @Param        id   path      string  true  "request id"
// @Success      200  {object}  types.RequestStatus
// @Failure      404  {object}  types.ErrorResponse
// @Router       /requests/{id} [delete]
func cancelHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Cancel(id); err != nil {
			writeServiceError(w, err)
			return
		}
		st, err := svc.Lookup(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, st)
	}
}

// statusHandler godoc
// @Summary      Scheduler status
// @Description  Queue depth, running sessions, concurrency budget and totals.
// @Tags         system
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	}
}
