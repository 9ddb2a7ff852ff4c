package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aur-admin-data/api/dto"
	"aur-admin-data/internal/entity"
	"aur-admin-data/internal/metrics"
	"aur-admin-data/internal/model"
	"aur-admin-data/internal/notify"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"telegram-alerts-go/alert"
)

const (
	defaultPageLimit  = 10
	heartbeatInterval = 15 * time.Second
)

func statusFor(kind string) int {
	switch kind {
	case dto.KindBackend, dto.KindValidation, dto.KindDangling, dto.KindPartial:
		return http.StatusBadGateway
	case dto.KindTimeout:
		return http.StatusGatewayTimeout
	case dto.KindDisabled:
		return http.StatusConflict
	case dto.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := dto.MapError(err)
	status := statusFor(resp.Kind)
	if status >= http.StatusInternalServerError && resp.Kind == dto.KindInternal {
		zap.S().Errorw(alert.Prefix("request failed"), "path", r.URL.Path, "error", err)
	} else {
		zap.S().Warnw("request failed", "path", r.URL.Path, "kind", resp.Kind, "error", err)
	}
	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: msg, Kind: dto.KindInvalid})
}

func parseListParams(r *http.Request) (model.ListParams, error) {
	q := r.URL.Query()
	p := model.ListParams{Limit: defaultPageLimit, Search: q.Get("search")}

	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("invalid offset %q", v)
		}
		p.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("invalid limit %q", v)
		}
		p.Limit = n
	}
	return p, p.Validate()
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if !strings.HasPrefix(r.Header.Get("Content-Type"), contentTypeJSON) {
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		badRequest(w, err.Error())
		return false
	}
	return true
}

func handleDishes(w http.ResponseWriter, r *http.Request, api AdminAPI) {
	p, err := parseListParams(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	list, err := api.Dishes(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func handleDish(w http.ResponseWriter, r *http.Request, api AdminAPI) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "invalid dish id")
		return
	}
	dish, err := api.Dish(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dish)
}

func handleSaveDish(w http.ResponseWriter, r *http.Request, api AdminAPI) {
	var in model.DishInput
	if !decodeBody(w, r, &in) {
		return
	}

	create := r.Method == http.MethodPost
	var err error
	var resp dto.MutationResponse
	if create {
		res, mErr := api.CreateDish(r.Context(), in)
		resp, err = dto.MapMutationResult(res), mErr
	} else {
		res, mErr := api.UpdateDish(r.Context(), in)
		resp, err = dto.MapMutationResult(res), mErr
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if create {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func handleReviews(w http.ResponseWriter, r *http.Request, api AdminAPI) {
	p, err := parseListParams(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	list, err := api.Reviews(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func handleReviewStatus(w http.ResponseWriter, r *http.Request, api AdminAPI) {
	var change model.ReviewStatusChange
	if !decodeBody(w, r, &change) {
		return
	}
	res, err := api.ChangeReviewStatus(r.Context(), change)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MapMutationResult(res))
}

func handleTags(w http.ResponseWriter, r *http.Request, api AdminAPI) {
	p, err := parseListParams(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	list, err := api.Tags(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func handleRestaurants(w http.ResponseWriter, r *http.Request, api AdminAPI) {
	p, err := parseListParams(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	list, err := api.Restaurants(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func handleInvalidate(w http.ResponseWriter, r *http.Request, api AdminAPI) {
	name, err := entity.Parse(chi.URLParam(r, "entity"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	keys := api.Invalidate(name)
	metrics.RecordInvalidation(string(name), len(keys))
	writeJSON(w, http.StatusOK, dto.InvalidateResponse{Entity: string(name), Keys: dto.MapKeys(keys)})
}

func handleNotificationStream(w http.ResponseWriter, r *http.Request, bus *notify.Bus) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	qEntity := r.URL.Query().Get("entity")
	qSeverity := r.URL.Query().Get("severity")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if !matchFilter(string(ev.Entity), qEntity) || !matchFilter(string(ev.Severity), qSeverity) {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Severity, data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ":\n\n")
			flusher.Flush()
		}
	}
}

func matchFilter(value, filter string) bool {
	return filter == "" || value == filter
}
