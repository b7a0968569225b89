// Package wizard implements the per-chat conversational state machine
// used to collect multi-step booking, charge and payment input.
package wizard

// Step identifies the current point of a wizard flow.
type Step string

// Top-level booking flow.
const (
	StepNone         Step = ""
	StepGuestName    Step = "guest_name"
	StepCheckInDate  Step = "check_in_date"
	StepCheckOutDate Step = "check_out_date"
	StepRoom         Step = "room"
	StepAdults       Step = "adults"
	StepChildren     Step = "children"
	StepAmount       Step = "amount"
	StepConfirm      Step = "confirm"
)

// Charge sub-wizard.
const (
	StepChargeType      Step = "charge_type"
	StepChargeFnBSearch Step = "charge_fnb_search"
	StepChargeFnBPick   Step = "charge_fnb_pick"
	StepChargeMiscDesc  Step = "charge_misc_desc"
	StepChargeQty       Step = "charge_qty"
	StepChargeUnitPrice Step = "charge_unit_price"
	StepChargeConfirm   Step = "charge_confirm"
)

// Payment sub-wizard.
const (
	StepPaymentType    Step = "payment_type"
	StepPaymentAmount  Step = "payment_amount"
	StepPaymentConfirm Step = "payment_confirm"
)

// Modify flow for an existing booking.
const (
	StepModifyCheckIn  Step = "modify_check_in"
	StepModifyCheckOut Step = "modify_check_out"
	StepModifyRoom     Step = "modify_room"
)

// transitions is the explicit table of allowed step changes. Any
// transition not listed here is illegal; StepNone is reachable from
// everywhere because every flow can be cancelled or completed.
var transitions = map[Step][]Step{
	StepNone:      {StepGuestName, StepChargeType, StepPaymentType, StepModifyCheckIn},
	StepGuestName: {StepCheckInDate},
	StepCheckInDate: {
		StepCheckOutDate,
		StepCheckInDate, // calendar month navigation stays on the step
	},
	StepCheckOutDate: {StepCheckOutDate, StepRoom},
	StepRoom:         {StepAdults},
	StepAdults:       {StepChildren},
	StepChildren: {
		StepAmount,
		StepChildren, // recapture after an adults change invalidated the prior choice
	},
	StepAmount:  {StepConfirm},
	StepConfirm: {StepNone},

	StepChargeType:      {StepChargeFnBSearch, StepChargeMiscDesc},
	StepChargeFnBSearch: {StepChargeFnBSearch, StepChargeFnBPick},
	StepChargeFnBPick:   {StepChargeQty},
	StepChargeMiscDesc:  {StepChargeQty},
	StepChargeQty:       {StepChargeUnitPrice},
	StepChargeUnitPrice: {StepChargeConfirm},
	StepChargeConfirm:   {StepNone},

	StepPaymentType:    {StepPaymentAmount},
	StepPaymentAmount:  {StepPaymentConfirm},
	StepPaymentConfirm: {StepNone},

	StepModifyCheckIn:  {StepModifyCheckIn, StepModifyCheckOut},
	StepModifyCheckOut: {StepModifyCheckOut, StepModifyRoom},
	StepModifyRoom:     {StepNone},
}

// CanTransition reports whether moving from one step to another is allowed.
// StepNone as a target is always allowed: cancel/restart clears any flow.
func CanTransition(from, to Step) bool {
	if to == StepNone {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the state to the target step if the transition table
// allows it, stamping the update time. It returns false and leaves the
// state untouched for an illegal transition.
func (s *State) Transition(to Step) bool {
	if !CanTransition(s.Step, to) {
		return false
	}
	s.Step = to
	s.touch()
	return true
}

// IsValidStep reports whether the tag names a known step.
func IsValidStep(s Step) bool {
	if s == StepNone {
		return true
	}
	_, ok := transitions[s]
	return ok
}
