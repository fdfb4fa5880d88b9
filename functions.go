package voiceclient

import (
	"strings"
	"sync"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/voiceclient/protocol"
)

// FunctionHandlerConfig holds the collaborators function results are
// forwarded to
type FunctionHandlerConfig struct {
	Map    MapAnnotator
	Orders OrderUI
	Logger telemetry.Logger

	OnPreferencesStored func(preferences string)
	OnBudgetStored      func(budget string)
}

// FunctionHandler interprets backend function-call results and forwards
// them to external collaborators. It owns no conversation state; the
// only thing it retains is the order summary pending confirmation.
type FunctionHandler struct {
	config FunctionHandlerConfig
	logger telemetry.Logger

	mu           sync.Mutex
	pendingOrder string
	hasPending   bool
}

// NewFunctionHandler creates a function-result handler
func NewFunctionHandler(config FunctionHandlerConfig) *FunctionHandler {
	return &FunctionHandler{
		config: config,
		logger: config.Logger.WithModule("functions"),
	}
}

// Handle routes one function-call result. A missing or false success
// flag is a non-fatal diagnostic and produces no forwarded effect; the
// remote side retries or the user re-issues the request.
func (h *FunctionHandler) Handle(name protocol.FunctionName, result protocol.FunctionResult) {
	if !result.Success {
		h.logger.Warn("Function call reported failure", telemetry.String("function", string(name)))
		return
	}

	switch name {
	case protocol.FunctionStoreDietaryPreferences:
		h.logger.Info("Preferences stored", telemetry.String("preferences", result.Preferences))
		if h.config.OnPreferencesStored != nil {
			h.config.OnPreferencesStored(result.Preferences)
		}

	case protocol.FunctionStoreBudgetInfo:
		h.logger.Info("Budget stored", telemetry.String("budget", result.Budget))
		if h.config.OnBudgetStored != nil {
			h.config.OnBudgetStored(result.Budget)
		}

	case protocol.FunctionSearchRestaurants:
		h.placeMarkers(result.Restaurants)

	case protocol.FunctionConfirmOrder:
		h.mu.Lock()
		h.pendingOrder = result.OrderSummary
		h.hasPending = true
		h.mu.Unlock()
		h.logger.Info("Order confirmable", telemetry.String("summary", result.OrderSummary))
		if h.config.Orders != nil {
			h.config.Orders.OnOrderConfirmable(result.OrderSummary)
		}

	default:
		h.logger.Warn("Unknown function result", telemetry.String("function", string(name)))
	}
}

// placeMarkers forwards search results to the map in list order
func (h *FunctionHandler) placeMarkers(restaurants []protocol.Restaurant) {
	if h.config.Map == nil {
		return
	}
	for _, r := range restaurants {
		h.config.Map.PlaceOrUpdateMarker(MarkerID(r.Name), LatLng{Lat: r.Lat, Lng: r.Lng}, MarkerOptions{
			Title:             r.Name,
			PriceLevel:        r.PriceLevel,
			Reasoning:         r.Reasoning,
			DeliveryPlatforms: r.DeliveryPlatforms,
		})
	}
	h.logger.Info("Placed restaurant markers", telemetry.Int("count", len(restaurants)))
}

// PendingOrder returns the cached order summary awaiting confirmation
func (h *FunctionHandler) PendingOrder() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pendingOrder, h.hasPending
}

// MarkerID derives a stable marker identifier from a restaurant name,
// so the same entity always maps to the same marker
func MarkerID(name string) string {
	var b strings.Builder
	b.WriteString("restaurant-")
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
