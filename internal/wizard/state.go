package wizard

import (
	"encoding/json"
	"time"
)

// CachedItem is one row of the last rendered menu search result.
// Pick callbacks carry an index into this cache; the stored ID keeps
// the row traceable to its menu item.
type CachedItem struct {
	ID     int64   `json:"id"`
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// Data holds everything collected so far in the current flow.
// It only grows (or is replaced wholesale) per step transition; the
// only way fields disappear is clearing the whole state.
type Data struct {
	PropertyID int64  `json:"propertyId,omitempty"`
	GuestName  string `json:"guestName,omitempty"`
	RoomNo     string `json:"roomNo,omitempty"`
	CheckIn    string `json:"checkIn,omitempty"`
	CheckOut   string `json:"checkOut,omitempty"`
	Adults     int    `json:"adults,omitempty"`
	Children   int    `json:"children,omitempty"`
	// ChildrenSet distinguishes "0 children chosen" from "not chosen yet".
	ChildrenSet bool    `json:"childrenSet,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	// Token guards the final confirm button against replay.
	Token string `json:"token,omitempty"`

	// BookingID anchors charge/payment/modify sub-flows to an existing booking.
	BookingID int64 `json:"bookingId,omitempty"`

	// Charge sub-wizard scratch.
	ChargeType   string       `json:"chargeType,omitempty"`
	ChargeDesc   string       `json:"chargeDesc,omitempty"`
	ChargeQty    int          `json:"chargeQty,omitempty"`
	UnitPrice    float64      `json:"unitPrice,omitempty"`
	CatalogPrice float64      `json:"catalogPrice,omitempty"`
	FnBResults   []CachedItem `json:"fnbResults,omitempty"`

	// Payment sub-wizard scratch.
	PaymentType string `json:"paymentType,omitempty"`

	// Modify sub-flow scratch.
	TempCheckIn  string `json:"tempCheckIn,omitempty"`
	TempCheckOut string `json:"tempCheckOut,omitempty"`

	// SummaryMessageID is the chat message edited in place after mutations.
	SummaryMessageID int `json:"summaryMessageId,omitempty"`
}

// State is the persisted wizard row for one chat.
type State struct {
	ChatID    int64
	UserID    int64
	Step      Step
	Data      Data
	UpdatedAt time.Time
}

// New starts a flow at the given step.
func New(chatID, userID int64, step Step) *State {
	return &State{
		ChatID:    chatID,
		UserID:    userID,
		Step:      step,
		UpdatedAt: time.Now(),
	}
}

func (s *State) touch() {
	s.UpdatedAt = time.Now()
}

// Expired reports whether the state is older than ttl. A non-positive
// ttl disables expiry, preserving the source behaviour of flows that
// persist until completion or explicit cancel.
func (s *State) Expired(ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return time.Since(s.UpdatedAt) > ttl
}

// EncodeData serializes the collected fields for persistence.
func (s *State) EncodeData() ([]byte, error) {
	return json.Marshal(&s.Data)
}

// DecodeData replaces the collected fields from persisted JSON.
func (s *State) DecodeData(raw []byte) error {
	if len(raw) == 0 {
		s.Data = Data{}
		return nil
	}
	return json.Unmarshal(raw, &s.Data)
}
