package models

import "time"

// Room is a bookable unit of a property.
type Room struct {
	ID           int64
	PropertyID   int64
	RoomNo       string
	RoomType     string
	MaxOccupancy int
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Booking is a stay reservation for a room.
type Booking struct {
	ID            int64
	PropertyID    int64
	GuestName     string
	RoomNo        string
	CheckIn       string // YYYY-MM-DD
	CheckOut      string // YYYY-MM-DD
	Adults        int
	Children      int
	TotalAmount   float64
	IsCancelled   bool
	Source        string
	SourceDetails string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Nights returns the length of stay in nights.
func (b *Booking) Nights() int {
	in, err := time.Parse("2006-01-02", b.CheckIn)
	if err != nil {
		return 0
	}
	out, err := time.Parse("2006-01-02", b.CheckOut)
	if err != nil {
		return 0
	}
	n := int(out.Sub(in).Hours() / 24)
	if n < 0 {
		return 0
	}
	return n
}

// Charge types.
const (
	ChargeTypeFnB  = "fnb"
	ChargeTypeMisc = "misc"
)

// Payment types.
const (
	PaymentTypePayment = "payment"
	PaymentTypeRefund  = "refund"
)

// BookingCharge is a line item charged against a booking.
// Voided charges are kept for audit but excluded from totals.
type BookingCharge struct {
	ID          int64
	BookingID   int64
	ChargeType  string // fnb | misc
	Description string
	Quantity    int
	UnitAmount  float64
	Amount      float64
	IsVoided    bool
	CreatedAt   time.Time
}

// BookingPayment is money received (or refunded) against a booking.
type BookingPayment struct {
	ID          int64
	BookingID   int64
	PaymentType string // payment | refund
	Method      string
	Amount      float64
	IsVoided    bool
	CreatedAt   time.Time
}

// MenuItem is a food/beverage catalog entry for a property.
type MenuItem struct {
	ID         int64
	PropertyID int64
	Name       string
	Category   string
	Price      float64
	IsActive   bool
}

// FinancialSummary holds recomputed totals for a booking.
type FinancialSummary struct {
	ChargesTotal  float64 // non-voided charges
	PaymentsTotal float64 // non-voided payments net of refunds
}

// BalanceDue is room amount plus charges minus payments.
func (s FinancialSummary) BalanceDue(roomAmount float64) float64 {
	return roomAmount + s.ChargesTotal - s.PaymentsTotal
}
