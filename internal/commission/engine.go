// Package commission computes commission owed to staff and affiliates from
// order snapshots, aggregates the unpaid portion, and records payouts. The
// package is pure: it never reads stores or clocks other than stamping new
// payouts, and callers persist the returned values. Serializing concurrent
// payouts for one staff member is the caller's responsibility.
package commission

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNothingToPayOut     = errors.New("no unpaid commission to pay out")
	ErrStaffMemberNotFound = errors.New("staff member not found")
)

type RuleType string

const (
	RulePercentage RuleType = "percentage"
	RuleFixed      RuleType = "fixed"
)

// Rule converts order value into payable commission. Rate is percentage
// points for RulePercentage and an absolute currency amount for RuleFixed.
type Rule struct {
	Type RuleType
	Rate decimal.Decimal
}

type StaffType string

const (
	StaffSales     StaffType = "staff"
	StaffAffiliate StaffType = "affiliate"
)

// Order is an immutable snapshot supplied by the order store.
type Order struct {
	Number       string
	Total        decimal.Decimal
	Currency     string
	SalesAgentID string
	AffiliateID  string
}

// Payout is a finalized settlement of previously-unpaid commission. It
// references the order numbers it covers and is never mutated afterwards.
type Payout struct {
	ID              string
	Date            time.Time
	Amount          decimal.Decimal
	Currency        string
	PaidItemIDs     []string
	PaidByStaffID   string
	PaidByStaffName string
}

// Staff is the commission-relevant view of a staff or affiliate member.
type Staff struct {
	ID              string
	Name            string
	Type            StaffType
	RoleName        string
	TotalCommission decimal.Decimal // pending, not yet paid out
	PaidCommission  decimal.Decimal
	PayoutHistory   []Payout
}

// ProgramSettings is the affiliate program configuration, injected
// explicitly rather than read from ambient storage.
type ProgramSettings struct {
	Rule     Rule
	Currency string
}

// Payer identifies who confirmed a payout.
type Payer struct {
	StaffID string
	Name    string
}

// OrderCommission pairs an order with the commission it yields.
type OrderCommission struct {
	Order      Order
	Commission decimal.Decimal
}

// Aggregate is the unpaid commission position of one staff member.
type Aggregate struct {
	UnpaidOrders []OrderCommission
	Total        decimal.Decimal
}

// resolveRule finds the rule applicable to a member: affiliates are paid by
// the program configuration, everyone else by their role. The second return
// is false when no rule resolves, which callers treat as zero commission.
func resolveRule(staff Staff, roles map[string]Rule, program ProgramSettings) (Rule, bool) {
	if staff.Type == StaffAffiliate {
		if program.Rule.Type == "" {
			return Rule{}, false
		}
		return program.Rule, true
	}
	rule, ok := roles[staff.RoleName]
	return rule, ok
}

func attributedTo(order Order, staff Staff) bool {
	if staff.Type == StaffAffiliate {
		return order.AffiliateID == staff.ID
	}
	return order.SalesAgentID == staff.ID
}

// CalculateCommissionForOrder returns the commission owed to one member for
// one order. A missing rule or an order not attributed to the member yields
// zero, not an error. The result is unrounded so that aggregation does not
// compound rounding error; callers round to the currency's minor unit at
// display time.
func CalculateCommissionForOrder(order Order, staff Staff, roles map[string]Rule, program ProgramSettings) decimal.Decimal {
	if !attributedTo(order, staff) {
		return decimal.Zero
	}
	rule, ok := resolveRule(staff, roles, program)
	if !ok {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch rule.Type {
	case RulePercentage:
		amount = order.Total.Mul(rule.Rate).Div(decimal.NewFromInt(100))
	case RuleFixed:
		amount = rule.Rate
	default:
		return decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// paidItemSet is the union of PaidItemIDs across the member's payout history.
func paidItemSet(staff Staff) map[string]struct{} {
	paid := make(map[string]struct{})
	for _, p := range staff.PayoutHistory {
		for _, id := range p.PaidItemIDs {
			paid[id] = struct{}{}
		}
	}
	return paid
}

// AggregateUnpaidCommission filters out orders already settled by a prior
// payout, computes the commission for the rest, and keeps only orders that
// yield a positive amount. UnpaidOrders preserves the insertion order of the
// input. Calling it twice with the same inputs returns the same result.
func AggregateUnpaidCommission(orders []Order, staff Staff, roles map[string]Rule, program ProgramSettings) Aggregate {
	paid := paidItemSet(staff)

	agg := Aggregate{Total: decimal.Zero}
	for _, order := range orders {
		if _, done := paid[order.Number]; done {
			continue
		}
		amount := CalculateCommissionForOrder(order, staff, roles, program)
		if !amount.IsPositive() {
			continue
		}
		agg.UnpaidOrders = append(agg.UnpaidOrders, OrderCommission{Order: order, Commission: amount})
		agg.Total = agg.Total.Add(amount)
	}
	return agg
}

// RecordPayout settles the member's unpaid commission over the given orders.
// The total is recomputed fresh from the inputs rather than trusted from a
// possibly stale caller value; if it comes out non-positive the payout is
// rejected with ErrNothingToPayOut and the member is returned unchanged.
func RecordPayout(staff Staff, orders []Order, roles map[string]Rule, program ProgramSettings, payer Payer) (Staff, Payout, error) {
	if staff.ID == "" {
		return staff, Payout{}, ErrStaffMemberNotFound
	}

	agg := AggregateUnpaidCommission(orders, staff, roles, program)
	if !agg.Total.IsPositive() {
		return staff, Payout{}, ErrNothingToPayOut
	}

	ids := make([]string, len(agg.UnpaidOrders))
	for i, oc := range agg.UnpaidOrders {
		ids[i] = oc.Order.Number
	}

	currency := program.Currency
	if len(agg.UnpaidOrders) > 0 && agg.UnpaidOrders[0].Order.Currency != "" {
		currency = agg.UnpaidOrders[0].Order.Currency
	}

	payout := Payout{
		ID:              uuid.NewString(),
		Date:            time.Now().UTC(),
		Amount:          agg.Total,
		Currency:        currency,
		PaidItemIDs:     ids,
		PaidByStaffID:   payer.StaffID,
		PaidByStaffName: payer.Name,
	}

	staff.PayoutHistory = append(staff.PayoutHistory, payout)
	staff.PaidCommission = staff.PaidCommission.Add(agg.Total)
	// The pending counter is a snapshot convenience, reset on payout; the
	// authoritative exclusion set is the paid order ids above.
	staff.TotalCommission = decimal.Zero

	return staff, payout, nil
}
