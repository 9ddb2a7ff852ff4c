// Package admin is the data API of the admin panel: list and detail reads
// served through the query cache and the writes that invalidate it.
package admin

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"aur-admin-data/internal/entity"
	"aur-admin-data/internal/join"
	"aur-admin-data/internal/model"
	"aur-admin-data/internal/mutation"
	"aur-admin-data/internal/query"
	"aur-admin-data/internal/schema"
	"aur-admin-data/internal/store"
	"aur-admin-data/internal/transport"
)

const (
	pathDishes      = "admin/dishes"
	pathDish        = "admin/dish"
	pathReviews     = "admin/reviews"
	pathTags        = "admin/tags"
	pathRestaurants = "admin/restaurants"
)

type Service struct {
	resolver   *query.Resolver
	client     transport.Client
	memo       *join.Memo
	dispatcher *mutation.Dispatcher
}

// NewService wires the admin API. memo may be nil, then every dish detail
// is joined afresh.
func NewService(r *query.Resolver, c transport.Client, memo *join.Memo, d *mutation.Dispatcher) *Service {
	return &Service{resolver: r, client: c, memo: memo, dispatcher: d}
}

func (s *Service) Store() *store.Store { return s.resolver.Store() }

// Snapshot lists every cached entry for inspection.
func (s *Service) Snapshot() []store.Entry { return s.resolver.Store().Snapshot() }

func listKey(name entity.Name, p model.ListParams) store.Key {
	return store.NewKey(name, store.P("offset", p.Offset), store.P("limit", p.Limit), store.P("search", p.Search))
}

func DishKey(id int64) store.Key {
	return store.NewKey(entity.Dish, store.P("id", id))
}

func listValues(p model.ListParams) url.Values {
	v := url.Values{}
	v.Set("offset", strconv.Itoa(p.Offset))
	v.Set("limit", strconv.Itoa(p.Limit))
	v.Set("search", p.Search)
	return v
}

func fetchList[T any](ctx context.Context, c transport.Client, path string, p model.ListParams, sch schema.Schema) (model.List[T], error) {
	raw, err := c.Get(ctx, path, listValues(p))
	if err != nil {
		return model.List[T]{}, err
	}
	return schema.Parse[model.List[T]](sch, raw)
}

///////////////////////////////////////////////////////////
/// Queries
///////////////////////////////////////////////////////////

func (s *Service) DishesQuery(p model.ListParams) query.Query[model.List[model.Dish]] {
	return query.New(listKey(entity.Dish, p), func(ctx context.Context) (model.List[model.Dish], error) {
		return fetchList[model.Dish](ctx, s.client, pathDishes, p, dishesSchema)
	})
}

func (s *Service) ReviewsQuery(p model.ListParams) query.Query[model.List[model.Review]] {
	return query.New(listKey(entity.Review, p), func(ctx context.Context) (model.List[model.Review], error) {
		list, err := fetchList[model.Review](ctx, s.client, pathReviews, p, reviewsSchema)
		if err != nil {
			return list, err
		}
		for i := range list.Items {
			list.Items[i].Normalize()
		}
		return list, nil
	})
}

func (s *Service) TagsQuery(p model.ListParams) query.Query[model.List[model.Tag]] {
	return query.New(listKey(entity.Tag, p), func(ctx context.Context) (model.List[model.Tag], error) {
		return fetchList[model.Tag](ctx, s.client, pathTags, p, tagsSchema)
	})
}

func (s *Service) RestaurantsQuery(p model.ListParams) query.Query[model.List[model.Restaurant]] {
	return query.New(listKey(entity.Restaurant, p), func(ctx context.Context) (model.List[model.Restaurant], error) {
		return fetchList[model.Restaurant](ctx, s.client, pathRestaurants, p, restaurantsSchema)
	})
}

// AllRestaurantsQuery reads the whole restaurant collection, the input of
// every dish join.
func (s *Service) AllRestaurantsQuery() query.Query[model.List[model.Restaurant]] {
	return s.RestaurantsQuery(model.FullCollection())
}

// DishQuery reads one dish and joins its variations with the cached
// restaurant collection. restaurantsLoaded gates the query: it must only be
// true once AllRestaurantsQuery has succeeded.
func (s *Service) DishQuery(id int64, restaurantsLoaded bool) query.Query[model.ResolvedDish] {
	q := query.New(DishKey(id), func(ctx context.Context) (model.ResolvedDish, error) {
		v := url.Values{}
		v.Set("id", strconv.FormatInt(id, 10))
		raw, err := s.client.Get(ctx, pathDish, v)
		if err != nil {
			return model.ResolvedDish{}, err
		}
		dish, err := schema.Parse[model.Dish](dishSchema, raw)
		if err != nil {
			return model.ResolvedDish{}, err
		}

		// the join reads whatever collection is cached, stale or not
		restaurants := query.Resolve(s.resolver, s.AllRestaurantsQuery(), query.Identity[model.List[model.Restaurant]])
		if !restaurants.HasData {
			return model.ResolvedDish{}, fmt.Errorf("dish %d: %w: restaurants not loaded", id, join.ErrPartialCollection)
		}
		idx, err := join.NewIndex(restaurants.Data)
		if err != nil {
			return model.ResolvedDish{}, err
		}
		if s.memo != nil {
			return s.memo.Resolve(dish, idx)
		}
		return join.ResolveDishVariations(dish, idx)
	})
	return q.When(restaurantsLoaded)
}

///////////////////////////////////////////////////////////
/// Blocking reads
///////////////////////////////////////////////////////////

func (s *Service) Dishes(ctx context.Context, p model.ListParams) (model.List[model.Dish], error) {
	if err := p.Validate(); err != nil {
		return model.List[model.Dish]{}, err
	}
	return query.Fetch(ctx, s.resolver, s.DishesQuery(p))
}

func (s *Service) Reviews(ctx context.Context, p model.ListParams) (model.List[model.Review], error) {
	if err := p.Validate(); err != nil {
		return model.List[model.Review]{}, err
	}
	return query.Fetch(ctx, s.resolver, s.ReviewsQuery(p))
}

func (s *Service) Tags(ctx context.Context, p model.ListParams) (model.List[model.Tag], error) {
	if err := p.Validate(); err != nil {
		return model.List[model.Tag]{}, err
	}
	return query.Fetch(ctx, s.resolver, s.TagsQuery(p))
}

func (s *Service) Restaurants(ctx context.Context, p model.ListParams) (model.List[model.Restaurant], error) {
	if err := p.Validate(); err != nil {
		return model.List[model.Restaurant]{}, err
	}
	return query.Fetch(ctx, s.resolver, s.RestaurantsQuery(p))
}

// Dish waits for the restaurant collection and then for the joined dish.
func (s *Service) Dish(ctx context.Context, id int64) (model.ResolvedDish, error) {
	_, err := query.Fetch(ctx, s.resolver, s.AllRestaurantsQuery())
	if err != nil {
		return model.ResolvedDish{}, fmt.Errorf("load restaurants: %w", err)
	}
	return query.Fetch(ctx, s.resolver, s.DishQuery(id, true))
}

///////////////////////////////////////////////////////////
/// Non-blocking reads
///////////////////////////////////////////////////////////

func DishesState[S any](s *Service, p model.ListParams, sel func(model.List[model.Dish]) S) query.State[S] {
	return query.Resolve(s.resolver, s.DishesQuery(p), sel)
}

// DishState reports the joined dish. The dish itself is not fetched until
// the restaurant collection has loaded.
func DishState[S any](s *Service, id int64, sel func(model.ResolvedDish) S) query.State[S] {
	restaurants := query.Resolve(s.resolver, s.AllRestaurantsQuery(), query.Identity[model.List[model.Restaurant]])
	return query.Resolve(s.resolver, s.DishQuery(id, restaurants.IsSuccess), sel)
}

// ObserveDishes follows a dish list page; SetQuery on the observer moves it
// to another page without blanking the previous one.
func ObserveDishes[S any](s *Service, p model.ListParams, sel func(model.List[model.Dish]) S) *query.Observer[model.List[model.Dish], S] {
	return query.Observe(s.resolver, s.DishesQuery(p), sel)
}

///////////////////////////////////////////////////////////
/// Writes
///////////////////////////////////////////////////////////

func (s *Service) CreateDish(ctx context.Context, in model.DishInput) (mutation.Result, error) {
	return s.dispatcher.Mutate(ctx, mutation.CreateDish{Dish: in})
}

func (s *Service) UpdateDish(ctx context.Context, in model.DishInput) (mutation.Result, error) {
	return s.dispatcher.Mutate(ctx, mutation.UpdateDish{Dish: in})
}

func (s *Service) ChangeReviewStatus(ctx context.Context, change model.ReviewStatusChange) (mutation.Result, error) {
	return s.dispatcher.Mutate(ctx, mutation.ChangeReviewStatus{Change: change})
}

// Invalidate marks every cached entry of name stale.
func (s *Service) Invalidate(name entity.Name) []store.Key {
	return s.resolver.Store().InvalidateEntity(name)
}
