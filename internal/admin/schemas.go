package admin

import "aur-admin-data/internal/schema"

var (
	dishesSchema = schema.New("dishes", schema.ListEnvelope(schema.Object(
		schema.Field("id", schema.Integer()),
	)))

	dishSchema = schema.New("dish", schema.Object(
		schema.Field("id", schema.Integer()),
		schema.Field("vars", schema.Array(schema.Object(
			schema.Field("rest_id", schema.Integer()),
		))),
	))

	reviewsSchema = schema.New("reviews", schema.ListEnvelope(schema.Object(
		schema.Field("id", schema.Integer()),
	)))

	tagsSchema = schema.New("tags", schema.ListEnvelope(schema.Object(
		schema.Field("id", schema.Number()),
		schema.Field("name", schema.String()),
	)))

	restaurantsSchema = schema.New("restaurants", schema.ListEnvelope(schema.Object(
		schema.Field("id", schema.Integer()),
		schema.Field("name", schema.String()),
	)))
)
