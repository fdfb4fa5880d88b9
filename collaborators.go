package voiceclient

// LatLng is a geographic coordinate pair
type LatLng struct {
	Lat float64
	Lng float64
}

// MarkerOptions carries display metadata for a map marker
type MarkerOptions struct {
	Title             string
	PriceLevel        string
	Reasoning         string
	DeliveryPlatforms []string
}

// MapAnnotator is the mapping collaborator. PlaceOrUpdateMarker is an
// idempotent upsert keyed by id: repeated searches for the same entity
// update the existing marker instead of duplicating it.
type MapAnnotator interface {
	PlaceOrUpdateMarker(id string, pos LatLng, opts MarkerOptions)
}

// OrderUI is the order-confirmation collaborator
type OrderUI interface {
	// OnOrderConfirmable asks the UI to show a confirmation affordance
	// for the given order summary. The client caches the summary and
	// sends it back verbatim when the user confirms.
	OnOrderConfirmable(summary string)

	// OnApprovalRequested surfaces an approval request raised by the
	// backend automation layer.
	OnApprovalRequested(request string)
}
