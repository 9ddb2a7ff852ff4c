package httpserver

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"aur-admin-data/api/dto"
	"aur-admin-data/internal/entity"
	"aur-admin-data/internal/model"
	"aur-admin-data/internal/mutation"
	"aur-admin-data/internal/notify"
	"aur-admin-data/internal/store"

	"go.uber.org/zap"
	"telegram-alerts-go/alert"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxBodySize             = 5 << 20 // 5 MB
	gzipThreshold           = 500     // smallest response worth compressing
	baseAPIPath             = "/api"
	dishesPath              = baseAPIPath + "/dishes"
	dishPath                = dishesPath + "/{id}"
	reviewsPath             = baseAPIPath + "/reviews"
	reviewStatusPath        = reviewsPath + "/status"
	tagsPath                = baseAPIPath + "/tags"
	restaurantsPath         = baseAPIPath + "/restaurants"
	cacheEntriesPath        = baseAPIPath + "/cache/entries"
	cacheInvalidatePath     = baseAPIPath + "/cache/invalidate/{entity}"
	notificationsStreamPath = baseAPIPath + "/notifications/stream"
	metricsPath             = "/metrics"
	metricsHealthPath       = "/health"
	contentTypeJSON         = "application/json"
	headerContentEncoding   = "Content-Encoding"
	headerAcceptEncoding    = "Accept-Encoding"
	headerVary              = "Vary"
	encodingGzip            = "gzip"
)

// AdminAPI is the data layer the router serves.
type AdminAPI interface {
	Dishes(ctx context.Context, p model.ListParams) (model.List[model.Dish], error)
	Dish(ctx context.Context, id int64) (model.ResolvedDish, error)
	Reviews(ctx context.Context, p model.ListParams) (model.List[model.Review], error)
	Tags(ctx context.Context, p model.ListParams) (model.List[model.Tag], error)
	Restaurants(ctx context.Context, p model.ListParams) (model.List[model.Restaurant], error)

	CreateDish(ctx context.Context, in model.DishInput) (mutation.Result, error)
	UpdateDish(ctx context.Context, in model.DishInput) (mutation.Result, error)
	ChangeReviewStatus(ctx context.Context, change model.ReviewStatusChange) (mutation.Result, error)

	Snapshot() []store.Entry
	Invalidate(name entity.Name) []store.Key
}

// NewRouter returns the API handler. The notification stream is served
// outside the gzip middlewares since they buffer the whole response.
func NewRouter(api AdminAPI, bus *notify.Bus) http.Handler {
	r := chi.NewRouter()

	r.Use(limitBody(maxBodySize))
	r.Use(MetricsMiddleware)

	r.Get(notificationsStreamPath, func(w http.ResponseWriter, r *http.Request) {
		handleNotificationStream(w, r, bus)
	})

	r.Group(func(r chi.Router) {
		r.Use(decompressGzip)
		r.Use(compressGzip(gzipThreshold))

		r.Get(dishesPath, func(w http.ResponseWriter, r *http.Request) {
			handleDishes(w, r, api)
		})
		r.Post(dishesPath, func(w http.ResponseWriter, r *http.Request) {
			handleSaveDish(w, r, api)
		})
		r.Put(dishesPath, func(w http.ResponseWriter, r *http.Request) {
			handleSaveDish(w, r, api)
		})
		r.Get(dishPath, func(w http.ResponseWriter, r *http.Request) {
			handleDish(w, r, api)
		})
		r.Get(reviewsPath, func(w http.ResponseWriter, r *http.Request) {
			handleReviews(w, r, api)
		})
		r.Post(reviewStatusPath, func(w http.ResponseWriter, r *http.Request) {
			handleReviewStatus(w, r, api)
		})
		r.Get(tagsPath, func(w http.ResponseWriter, r *http.Request) {
			handleTags(w, r, api)
		})
		r.Get(restaurantsPath, func(w http.ResponseWriter, r *http.Request) {
			handleRestaurants(w, r, api)
		})
		r.Get(cacheEntriesPath, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, dto.MapCacheEntries(api.Snapshot()))
		})
		r.Post(cacheInvalidatePath, func(w http.ResponseWriter, r *http.Request) {
			handleInvalidate(w, r, api)
		})
	})

	return r
}

// NewMetricRouter serves Prometheus metrics and the health check.
func NewMetricRouter() http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, metricsPath, promhttp.Handler())
	r.Get(metricsHealthPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dto.StatusResponse{Status: "UP"})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorw(alert.Prefix("encode error"), "error", err)
	}
}

// ---- middleware ----

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

func decompressGzip(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerContentEncoding) == encodingGzip {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, "invalid gzip body", http.StatusBadRequest)
				return
			}
			defer gz.Close()
			r.Body = struct{ io.ReadCloser }{gz}
		}
		next.ServeHTTP(w, r)
	})
}

type bufferResponseWriter struct {
	http.ResponseWriter
	code int
	buf  strings.Builder
	once sync.Once
}

func (b *bufferResponseWriter) WriteHeader(statusCode int) {
	b.once.Do(func() { b.code = statusCode })
}

func (b *bufferResponseWriter) Write(p []byte) (int, error) {
	return b.buf.Write(p)
}

func compressGzip(threshold int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get(headerAcceptEncoding), encodingGzip) {
				next.ServeHTTP(w, r)
				return
			}
			brw := &bufferResponseWriter{ResponseWriter: w}
			next.ServeHTTP(brw, r)

			if brw.code == 0 {
				brw.code = http.StatusOK
			}

			data := brw.buf.String()
			if len(data) < threshold {
				w.WriteHeader(brw.code)
				io.WriteString(w, data)
				return
			}

			w.Header().Set(headerContentEncoding, encodingGzip)
			w.Header().Set(headerVary, headerAcceptEncoding)
			w.WriteHeader(brw.code)
			gz := gzip.NewWriter(w)
			if _, err := gz.Write([]byte(data)); err != nil {
				zap.S().Errorw(alert.Prefix("gzip write error"), "error", err)
			}
			gz.Close()
		})
	}
}
