package model

// Dish is the record returned by the dish detail endpoint. Variations
// reference restaurants by id only.
type Dish struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Active      bool       `json:"active"`
	CanDeliver  bool       `json:"can_deliver"`
	Have        bool       `json:"have"`
	Price       float64    `json:"price"`
	Weight      float64    `json:"weight"`
	Size        int        `json:"size"`
	Count       int        `json:"count"`
	Color       int        `json:"color"`
	Img         string     `json:"img"`
	IikoID      string     `json:"iiko_id"`
	FromHour    int        `json:"from_hour"`
	ToHour      int        `json:"to_hour"`
	Proteins    float64    `json:"belki"`
	Fats        float64    `json:"ziri"`
	Carbs       float64    `json:"uglevodi"`
	Energy      float64    `json:"energ_cen"`
	Nutrition   float64    `json:"pich_cen"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
	DeletedAt   *string    `json:"deleted_at"`
	Tags        []Tag      `json:"tags"`
	Categories  []Category `json:"category"`

	Variations []RawVariation `json:"vars"`
}

// RawVariation is a per-restaurant offer of a dish as the backend sends it.
type RawVariation struct {
	ID           int64   `json:"id"`
	RestaurantID int64   `json:"rest_id"`
	Price        float64 `json:"price"`
	Active       bool    `json:"active"`
	CanDeliver   bool    `json:"can_deliver"`
	Have         bool    `json:"have"`
}

// ResolvedVariation is a RawVariation joined with its restaurant.
type ResolvedVariation struct {
	RawVariation
	RestaurantName    string `json:"rest_name"`
	RestaurantAddress string `json:"rest_address"`
}

// ResolvedDish is a Dish whose variations carry restaurant details.
type ResolvedDish struct {
	Dish
	Variations []ResolvedVariation `json:"vars"`
}

// DishInput is the body of the create and update dish calls. ID is ignored
// on create.
type DishInput struct {
	ID          int64            `json:"id,omitempty"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Active      bool             `json:"active"`
	CanDeliver  bool             `json:"can_deliver"`
	Price       float64          `json:"price"`
	Weight      float64          `json:"weight"`
	Img         string           `json:"img,omitempty"`
	TagIDs      []int64          `json:"tags"`
	CategoryIDs []int64          `json:"category"`
	Variations  []VariationInput `json:"vars"`
}

type VariationInput struct {
	RestaurantID int64   `json:"rest_id"`
	Price        float64 `json:"price"`
	Active       bool    `json:"active"`
	CanDeliver   bool    `json:"can_deliver"`
	Have         bool    `json:"have"`
}
