package protocol

// FunctionName identifies a backend-side tool
type FunctionName string

const (
	FunctionStoreDietaryPreferences FunctionName = "store_dietary_preferences"
	FunctionStoreBudgetInfo         FunctionName = "store_budget_info"
	FunctionSearchRestaurants       FunctionName = "search_restaurants"
	FunctionConfirmOrder            FunctionName = "confirm_order"
)

// FunctionResult is the outcome payload of a backend tool invocation.
// Which fields are populated depends on the function name.
type FunctionResult struct {
	Success      bool         `json:"success"`
	Preferences  string       `json:"preferences,omitempty"`   // store_dietary_preferences
	Budget       string       `json:"budget,omitempty"`        // store_budget_info
	Restaurants  []Restaurant `json:"restaurants,omitempty"`   // search_restaurants
	OrderSummary string       `json:"order_summary,omitempty"` // confirm_order
}

// Restaurant is a single search result entry
type Restaurant struct {
	Name              string   `json:"name"`
	Lat               float64  `json:"lat"`
	Lng               float64  `json:"lng"`
	PriceLevel        string   `json:"price_level,omitempty"`
	Reasoning         string   `json:"reasoning,omitempty"`
	DeliveryPlatforms []string `json:"delivery_platforms,omitempty"`
}
