// Package orders reads order snapshots and answers the read-only questions the
// shipping-fee policy asks of them.
package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"shipfee-agent/internal/domain"
	"shipfee-agent/internal/llm"
)

// ErrSourceNotFound is returned when the order source does not exist.
var ErrSourceNotFound = errors.New("orders: no such order source")

// ErrInvalidSnapshot is returned when the order source is not a snapshot.
var ErrInvalidSnapshot = errors.New("orders: invalid order snapshot")

// LoadFile reads a snapshot from a JSON file.
func LoadFile(path string) (domain.OrderSnapshot, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: empty path", ErrSourceNotFound)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.OrderSnapshot{}, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return domain.OrderSnapshot{}, fmt.Errorf("orders: read %s: %w", path, err)
	}
	return Decode(raw)
}

// Decode parses a snapshot. The orders list may sit at the top level, inside
// a wrapping object, or under "data".
func Decode(raw []byte) (domain.OrderSnapshot, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	list, shape := llm.Lookup(obj, "orders")
	if shape == llm.ShapeNone {
		return domain.OrderSnapshot{}, nil
	}
	items, ok := list.([]any)
	if !ok {
		return domain.OrderSnapshot{}, nil
	}

	snap := domain.OrderSnapshot{Orders: make([]domain.Order, 0, len(items))}
	for _, item := range items {
		// Orders that do not have the expected shape are skipped, not fatal.
		buf, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var o domain.Order
		if err := json.Unmarshal(buf, &o); err != nil {
			continue
		}
		snap.Orders = append(snap.Orders, o)
	}
	return snap, nil
}

// IsActive reports whether status is one of the active statuses.
func IsActive(status domain.NullableInt) bool {
	if !status.Valid {
		return false
	}
	return status.Value == domain.OrderStatusNew || status.Value == domain.OrderStatusConfirmed
}

// PickActiveOrder returns the first order in list order whose status is
// active and which has at least one item.
func PickActiveOrder(snap domain.OrderSnapshot) (domain.Order, bool) {
	for _, o := range snap.Orders {
		if IsActive(o.Info.Status) && len(o.Items) > 0 {
			return o, true
		}
	}
	return domain.Order{}, false
}

// ExtractFee returns the order's shipping fee, or nil when it is absent or
// unreadable.
func ExtractFee(o domain.Order) *int {
	return o.Info.ShippingFee.Int()
}

// HasPriorSuccess reports whether any order in the snapshot completed
// successfully. Such a customer is treated as loyal.
func HasPriorSuccess(snap domain.OrderSnapshot) bool {
	for _, o := range snap.Orders {
		if o.Info.Status.Valid && o.Info.Status.Value == domain.OrderStatusSuccess {
			return true
		}
	}
	return false
}
