package domain

import "encoding/json"

// Case identifies which policy rule produced a reply.
type Case string

const (
	CaseTaggedAgent          Case = "tagged_agent"
	CaseNoOrder              Case = "no_order"
	CaseFreeship             Case = "freeship"
	CaseSmalltalk            Case = "smalltalk"
	CaseFeeComplaint         Case = "fee_question_complaint"
	CaseHasShipFirstTime     Case = "has_ship_first_time"
	CaseAskFreeShipFirstTime Case = "ask_free_ship_first_time"
	CaseAskFreeShip          Case = "ask_free_ship"
	CaseAskFreeShipManyTimes Case = "ask_free_ship_many_times"
)

// AllCases lists every reply case in policy order.
var AllCases = []Case{
	CaseTaggedAgent,
	CaseNoOrder,
	CaseFreeship,
	CaseSmalltalk,
	CaseFeeComplaint,
	CaseHasShipFirstTime,
	CaseAskFreeShipFirstTime,
	CaseAskFreeShip,
	CaseAskFreeShipManyTimes,
}

// Valid reports whether c is one of the known cases.
func (c Case) Valid() bool {
	for _, known := range AllCases {
		if c == known {
			return true
		}
	}
	return false
}

// Action is the side effect requested from the caller. The zero value means
// no action and encodes as JSON null.
type Action string

const (
	ActionNone     Action = ""
	ActionFreeship Action = "freeship"
	ActionTagAgent Action = "tagAgent"
)

func (a Action) MarshalJSON() ([]byte, error) {
	if a == ActionNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(a))
}

func (a *Action) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = ActionNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = Action(s)
	return nil
}

// Actions carries structured flags derived from the action.
type Actions struct {
	ApplyFreeShipping bool `json:"apply_free_shipping"`
}

// Diagnostic records the state the decision was taken on.
type Diagnostic struct {
	AskedCount   int     `json:"asked_count"`
	ShippingFee  *int    `json:"shipping_fee"`
	OrderID      *string `json:"order_id"`
	Status       *int    `json:"status"`
	PickedReason string  `json:"picked_reason"`
}

// ReplyDecision is the single outcome of one incoming message.
type ReplyDecision struct {
	Case       Case       `json:"case"`
	ReplyText  string     `json:"reply_text"`
	Action     Action     `json:"action"`
	Actions    Actions    `json:"actions"`
	Diagnostic Diagnostic `json:"diagnostic"`
}
