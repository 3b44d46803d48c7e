package transport

import (
	"time"

	"inventory_reports/internal/delivery"
	"inventory_reports/internal/inventory"
	"inventory_reports/internal/resources"
)

// ItemRequest is the body of POST and PUT /api/items.
type ItemRequest struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// ItemResponse is one table row.
type ItemResponse struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Total    string  `json:"total"`
}

// ItemListResponse is the inventory table with its grand total. Stale is
// set when the latest refresh failed and the previous snapshot is shown.
type ItemListResponse struct {
	Items      []ItemResponse `json:"items"`
	GrandTotal string         `json:"grandTotal"`
	Stale      bool           `json:"stale"`
	Error      string         `json:"error,omitempty"`
}

// FormatRequest selects the report format.
type FormatRequest struct {
	Format string `json:"format" validate:"required,reportformat"`
}

// FormatResponse is the current selection and the choices.
type FormatResponse struct {
	Format  string   `json:"format"`
	Formats []string `json:"formats"`
}

// DeliveryQuery is the optional ?format= override of delivery endpoints.
type DeliveryQuery struct {
	Format string `form:"format" validate:"omitempty,reportformat"`
}

// PreviewResponse is the inline preview state.
type PreviewResponse struct {
	State  delivery.PreviewState `json:"state"`
	Handle *resources.Handle     `json:"handle,omitempty"`
}

// NotificationResponse is one user facing message.
type NotificationResponse struct {
	ID      uint64         `json:"id"`
	Level   delivery.Level `json:"level"`
	Message string         `json:"message"`
	At      time.Time      `json:"at"`
}

// ToItemResponse maps a store item.
func ToItemResponse(it inventory.Item) ItemResponse {
	return ItemResponse{
		ID:       it.ID,
		Name:     it.Name,
		Quantity: it.Quantity,
		Price:    it.Price,
		Total:    it.Total().String(),
	}
}

// ToItemListResponse maps a snapshot.
func ToItemListResponse(items []inventory.Item) ItemListResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, ToItemResponse(it))
	}
	return ItemListResponse{
		Items:      out,
		GrandTotal: inventory.GrandTotal(items).String(),
	}
}
