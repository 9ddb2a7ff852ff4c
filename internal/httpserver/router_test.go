package httpserver

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aur-admin-data/api/dto"
	"aur-admin-data/internal/entity"
	"aur-admin-data/internal/join"
	"aur-admin-data/internal/model"
	"aur-admin-data/internal/mutation"
	"aur-admin-data/internal/notify"
	"aur-admin-data/internal/store"
	"aur-admin-data/internal/transport"
)

type mockAPI struct {
	dishesCalled []model.ListParams
	dishCalled   []int64
	created      []model.DishInput
	updated      []model.DishInput
	statusCalled []model.ReviewStatusChange
	invalidated  []entity.Name

	dishes    model.List[model.Dish]
	dish      model.ResolvedDish
	dishErr   error
	mutateErr error
	entries   []store.Entry
}

func (m *mockAPI) Dishes(_ context.Context, p model.ListParams) (model.List[model.Dish], error) {
	m.dishesCalled = append(m.dishesCalled, p)
	return m.dishes, nil
}

func (m *mockAPI) Dish(_ context.Context, id int64) (model.ResolvedDish, error) {
	m.dishCalled = append(m.dishCalled, id)
	return m.dish, m.dishErr
}

func (m *mockAPI) Reviews(context.Context, model.ListParams) (model.List[model.Review], error) {
	return model.List[model.Review]{Items: []model.Review{{ID: 1, UserID: 4}}, Total: 1}, nil
}

func (m *mockAPI) Tags(context.Context, model.ListParams) (model.List[model.Tag], error) {
	return model.List[model.Tag]{}, nil
}

func (m *mockAPI) Restaurants(context.Context, model.ListParams) (model.List[model.Restaurant], error) {
	return model.List[model.Restaurant]{}, &transport.Error{Method: "GET", Path: "admin/restaurants", Status: 503}
}

func (m *mockAPI) CreateDish(_ context.Context, in model.DishInput) (mutation.Result, error) {
	m.created = append(m.created, in)
	res := mutation.Result{Kind: mutation.KindCreateDish, Entity: entity.Dish, Err: m.mutateErr}
	if m.mutateErr == nil {
		res.Invalidated = []store.Key{store.NewKey(entity.Dish, store.P("id", 1))}
	}
	return res, m.mutateErr
}

func (m *mockAPI) UpdateDish(_ context.Context, in model.DishInput) (mutation.Result, error) {
	m.updated = append(m.updated, in)
	return mutation.Result{Kind: mutation.KindUpdateDish, Entity: entity.Dish}, m.mutateErr
}

func (m *mockAPI) ChangeReviewStatus(_ context.Context, change model.ReviewStatusChange) (mutation.Result, error) {
	m.statusCalled = append(m.statusCalled, change)
	return mutation.Result{Kind: mutation.KindChangeReviewStatus, Entity: entity.Review}, nil
}

func (m *mockAPI) Snapshot() []store.Entry { return m.entries }

func (m *mockAPI) Invalidate(name entity.Name) []store.Key {
	m.invalidated = append(m.invalidated, name)
	return []store.Key{store.NewKey(name)}
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandleDishes(t *testing.T) {
	api := &mockAPI{dishes: model.List[model.Dish]{Items: []model.Dish{{ID: 1, Name: "Soup"}}, Total: 57}}
	router := NewRouter(api, notify.NewBus())

	rr := serve(router, http.MethodGet, dishesPath+"?offset=20&limit=10&search=soup", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d", rr.Code)
	}
	want := model.ListParams{Offset: 20, Limit: 10, Search: "soup"}
	if len(api.dishesCalled) != 1 || api.dishesCalled[0] != want {
		t.Fatalf("unexpected params: %+v", api.dishesCalled)
	}
	var resp model.List[model.Dish]
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 57 || len(resp.Items) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleDishes_DefaultsAndBadParams(t *testing.T) {
	api := &mockAPI{}
	router := NewRouter(api, notify.NewBus())

	serve(router, http.MethodGet, dishesPath, "")
	if api.dishesCalled[0].Limit != defaultPageLimit {
		t.Fatalf("default limit not applied: %+v", api.dishesCalled[0])
	}

	for _, q := range []string{"?offset=x", "?limit=0", "?offset=-5"} {
		rr := serve(router, http.MethodGet, dishesPath+q, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: code=%d", q, rr.Code)
		}
	}
	if len(api.dishesCalled) != 1 {
		t.Fatalf("bad params must not reach the api")
	}
}

func TestHandleDish(t *testing.T) {
	api := &mockAPI{dish: model.ResolvedDish{
		Dish:       model.Dish{ID: 5, Name: "Borscht"},
		Variations: []model.ResolvedVariation{{RawVariation: model.RawVariation{ID: 1, RestaurantID: 2}, RestaurantName: "Harbour"}},
	}}
	router := NewRouter(api, notify.NewBus())

	rr := serve(router, http.MethodGet, "/api/dishes/5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d", rr.Code)
	}
	if len(api.dishCalled) != 1 || api.dishCalled[0] != 5 {
		t.Fatalf("unexpected ids: %v", api.dishCalled)
	}
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	vars, _ := body["vars"].([]any)
	if len(vars) != 1 || vars[0].(map[string]any)["rest_name"] != "Harbour" {
		t.Fatalf("unexpected vars: %v", body["vars"])
	}

	rr = serve(router, http.MethodGet, "/api/dishes/abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("code=%d", rr.Code)
	}
}

func TestHandleDish_DanglingReference(t *testing.T) {
	api := &mockAPI{dishErr: &join.DanglingReferenceError{DishID: 5, RestaurantID: 99}}
	router := NewRouter(api, notify.NewBus())

	rr := serve(router, http.MethodGet, "/api/dishes/5", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("code=%d", rr.Code)
	}
	var resp dto.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Kind != dto.KindDangling || resp.RestaurantID != 99 {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestHandleRestaurants_BackendError(t *testing.T) {
	router := NewRouter(&mockAPI{}, notify.NewBus())
	rr := serve(router, http.MethodGet, restaurantsPath, "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("code=%d", rr.Code)
	}
}

func TestHandleSaveDish(t *testing.T) {
	api := &mockAPI{}
	router := NewRouter(api, notify.NewBus())

	rr := serve(router, http.MethodPost, dishesPath, `{"name":"Pelmeni","price":420,"vars":[{"rest_id":1,"price":400}]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("code=%d", rr.Code)
	}
	if len(api.created) != 1 || api.created[0].Name != "Pelmeni" || api.created[0].Variations[0].RestaurantID != 1 {
		t.Fatalf("unexpected create: %+v", api.created)
	}
	var resp dto.MutationResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Kind != "create-dish" || len(resp.Invalidated) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rr = serve(router, http.MethodPut, dishesPath, `{"id":5,"name":"Pelmeni"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d", rr.Code)
	}
	if len(api.updated) != 1 || api.updated[0].ID != 5 {
		t.Fatalf("unexpected update: %+v", api.updated)
	}
}

func TestHandleSaveDish_Errors(t *testing.T) {
	api := &mockAPI{mutateErr: &transport.Error{Method: "POST", Path: "admin/dish", Status: 500}}
	router := NewRouter(api, notify.NewBus())

	rr := serve(router, http.MethodPost, dishesPath, `{"name":"Pelmeni"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("code=%d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, dishesPath, strings.NewReader(`name=x`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("code=%d", rr.Code)
	}

	rr = serve(router, http.MethodPost, dishesPath, `{"name":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("code=%d", rr.Code)
	}
}

func TestHandleReviewStatus(t *testing.T) {
	api := &mockAPI{}
	router := NewRouter(api, notify.NewBus())

	rr := serve(router, http.MethodPost, reviewStatusPath, `{"user_id":4,"id":1,"status":"approved"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d", rr.Code)
	}
	want := model.ReviewStatusChange{UserID: 4, ReviewID: 1, Status: "approved"}
	if len(api.statusCalled) != 1 || api.statusCalled[0] != want {
		t.Fatalf("unexpected change: %+v", api.statusCalled)
	}
}

func TestHandleCache(t *testing.T) {
	s := store.New()
	s.Set(store.NewKey(entity.Tag), 1)
	api := &mockAPI{entries: s.Snapshot()}
	router := NewRouter(api, notify.NewBus())

	rr := serve(router, http.MethodGet, cacheEntriesPath, "")
	var entries dto.CacheEntries
	if err := json.NewDecoder(rr.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries.Entries) != 1 || entries.Entries[0].Key != "tag" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	rr = serve(router, http.MethodPost, "/api/cache/invalidate/review", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d", rr.Code)
	}
	if len(api.invalidated) != 1 || api.invalidated[0] != entity.Review {
		t.Fatalf("unexpected invalidation: %v", api.invalidated)
	}

	rr = serve(router, http.MethodPost, "/api/cache/invalidate/dishes", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("entity names are exact, code=%d", rr.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	router := NewRouter(&mockAPI{}, notify.NewBus())
	big := `{"name":"` + strings.Repeat("a", maxBodySize+1) + `"}`
	rr := serve(router, http.MethodPost, dishesPath, big)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("code=%d", rr.Code)
	}
}

func TestGzipDecompress(t *testing.T) {
	api := &mockAPI{}
	router := NewRouter(api, notify.NewBus())
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	io.WriteString(gz, `{"name":"Pelmeni"}`)
	gz.Close()
	req := httptest.NewRequest(http.MethodPost, dishesPath, &buf)
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Content-Type", contentTypeJSON)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("code=%d", rr.Code)
	}
	if len(api.created) != 1 || api.created[0].Name != "Pelmeni" {
		t.Fatalf("unexpected create: %+v", api.created)
	}
}

func TestGzipCompress(t *testing.T) {
	items := make([]model.Dish, 50)
	for i := range items {
		items[i] = model.Dish{ID: int64(i), Name: "Dish with a reasonably long name"}
	}
	router := NewRouter(&mockAPI{dishes: model.List[model.Dish]{Items: items, Total: 50}}, notify.NewBus())

	req := httptest.NewRequest(http.MethodGet, dishesPath, nil)
	req.Header.Set("Accept-Encoding", encodingGzip)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Header().Get(headerContentEncoding) != encodingGzip {
		t.Fatalf("large response should be gzipped")
	}
	gz, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	var resp model.List[model.Dish]
	if err := json.NewDecoder(gz).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 50 {
		t.Fatalf("unexpected total %d", resp.Total)
	}
}

func TestMetricsHealth(t *testing.T) {
	router := NewMetricRouter()
	req := httptest.NewRequest(http.MethodGet, metricsHealthPath, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d", rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != `{"status":"UP"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestNotificationStream(t *testing.T) {
	bus := notify.NewBus()
	srv := httptest.NewServer(NewRouter(&mockAPI{}, bus))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+notificationsStreamPath+"?entity=dish", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for bus.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stream did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	review := notify.NewEvent(notify.Success, "Success", "Review status for user 4 changed", time.Second)
	review.Entity = entity.Review
	dish := notify.NewEvent(notify.Success, "Success", "Dish Pelmeni created", time.Second)
	dish.Entity = entity.Dish
	_ = bus.Notify(ctx, review)
	_ = bus.Notify(ctx, dish)

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var got notify.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.ID != dish.ID {
			t.Fatalf("filtered event delivered: %+v", got)
		}
		return
	}
}
