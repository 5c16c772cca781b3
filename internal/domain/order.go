package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Order statuses understood by the order lookup.
const (
	OrderStatusNew       = 0
	OrderStatusConfirmed = 1
	OrderStatusSuccess   = 3
)

// OrderSnapshot is the read-only order dataset supplied with a request.
type OrderSnapshot struct {
	Orders []Order `json:"orders"`
}

// Order is a single order from the snapshot. Items are kept raw because only
// their count matters to the policy.
type Order struct {
	Info  OrderInfo         `json:"order_info"`
	Items []json.RawMessage `json:"items"`
}

// OrderInfo holds the fields of order_info consumed by the policy.
type OrderInfo struct {
	ID          OrderID     `json:"id"`
	Status      NullableInt `json:"status"`
	ShippingFee NullableInt `json:"shipping_fee"`
}

// NullableInt decodes a JSON number, a numeric string or null. Values that
// cannot be read as an integer decode as invalid instead of failing the
// whole snapshot.
type NullableInt struct {
	Value int
	Valid bool
}

// Int returns a pointer to the value, or nil when invalid.
func (n NullableInt) Int() *int {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

func (n *NullableInt) UnmarshalJSON(data []byte) error {
	*n = NullableInt{}
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	s := string(raw)
	if raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil
		}
		s = strings.TrimSpace(str)
	}
	if v, err := strconv.Atoi(s); err == nil {
		*n = NullableInt{Value: v, Valid: true}
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*n = NullableInt{Value: int(f), Valid: true}
	}
	return nil
}

func (n NullableInt) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(n.Value)), nil
}

// OrderID accepts both string and numeric ids.
type OrderID string

func (id *OrderID) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*id = ""
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*id = OrderID(s)
		return nil
	}
	*id = OrderID(raw)
	return nil
}
