package domain

// Intent is the coarse topic of an incoming message.
type Intent string

const (
	IntentShipFee   Intent = "ship_fee"
	IntentOther     Intent = "other"
	IntentSmalltalk Intent = "smalltalk"
)

// Signals is the per-message classification bundle. It is never persisted.
type Signals struct {
	Intent         Intent `json:"intent"`
	WantsFree      bool   `json:"wants_free"`
	CancelThreat   bool   `json:"cancel_threat"`
	AboutFeeAmount bool   `json:"about_fee_amount"`
	IsComplaint    bool   `json:"is_complaint"`
	SmalltalkReply string `json:"smalltalk_reply,omitempty"`
}
