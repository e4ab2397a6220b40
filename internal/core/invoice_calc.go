package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentEvent is a payment as seen by the calculator.
type PaymentEvent struct {
	ID     int
	Amount decimal.Decimal
	At     time.Time
}

// RefundEvent is a refund as seen by the calculator.
type RefundEvent struct {
	ID        int
	PaymentID int
	Amount    decimal.Decimal
	At        time.Time
}

// InvoiceTotals is the derived financial state of an invoice. Balance is
// always within [0, Total]; Credit holds any payment excess that could not
// be applied.
type InvoiceTotals struct {
	Total    decimal.Decimal
	Paid     decimal.Decimal // sum of applied payment portions
	Refunded decimal.Decimal
	Balance  decimal.Decimal
	Credit   decimal.Decimal
	Status   string

	// AppliedByPayment maps payment ID to the portion of that payment
	// currently applied to the balance (net of its refunds). This is the
	// refundable cap for each payment.
	AppliedByPayment map[int]decimal.Decimal
}

// LineTotal computes quantity * unitPrice - discount, floored at zero.
func LineTotal(quantity int, unitPrice, discount decimal.Decimal) decimal.Decimal {
	total := unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// InvoiceTotal sums the line totals and subtracts the invoice-level
// discount, floored at zero.
func InvoiceTotal(lines []InvoiceLine, discount decimal.Decimal) decimal.Decimal {
	var sum decimal.Decimal
	for _, l := range lines {
		sum = sum.Add(LineTotal(l.Quantity, l.UnitPrice, l.Discount))
	}
	total := sum.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// StatusForBalance derives the invoice status from its total and balance.
// A zero-total invoice is paid by definition. Void is never derived here;
// it is an explicit administrative state.
func StatusForBalance(total, balance decimal.Decimal) string {
	switch {
	case balance.IsZero():
		return InvoiceStatusPaid
	case balance.Equal(total):
		return InvoiceStatusOpen
	default:
		return InvoiceStatusPartiallyPaid
	}
}

// ComputeTotals replays the payment and refund history against the invoice
// total in chronological order and returns the derived financial state.
//
// Each payment is applied up to the balance outstanding at the time it was
// recorded; any excess is credit. Each refund restores its amount to the
// balance and reduces the applied portion of the payment it targets, so a
// later payment can re-cover the reopened balance.
//
// Ordering ties are broken deterministically: payments before refunds at
// the same instant, then ascending ID. Replaying the same history always
// yields the same state.
func ComputeTotals(total decimal.Decimal, payments []PaymentEvent, refunds []RefundEvent) InvoiceTotals {
	type event struct {
		at        time.Time
		isRefund  bool
		id        int
		paymentID int
		amount    decimal.Decimal
	}

	events := make([]event, 0, len(payments)+len(refunds))
	for _, p := range payments {
		events = append(events, event{at: p.At, id: p.ID, paymentID: p.ID, amount: p.Amount})
	}
	for _, r := range refunds {
		events = append(events, event{at: r.At, isRefund: true, id: r.ID, paymentID: r.PaymentID, amount: r.Amount})
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].at.Equal(events[j].at) {
			return events[i].at.Before(events[j].at)
		}
		if events[i].isRefund != events[j].isRefund {
			return !events[i].isRefund
		}
		return events[i].id < events[j].id
	})

	t := InvoiceTotals{
		Total:            total,
		Balance:          total,
		AppliedByPayment: make(map[int]decimal.Decimal, len(payments)),
	}
	tendered := decimal.Zero

	for _, e := range events {
		if e.isRefund {
			t.Refunded = t.Refunded.Add(e.amount)
			t.AppliedByPayment[e.paymentID] = t.AppliedByPayment[e.paymentID].Sub(e.amount)
			t.Balance = t.Balance.Add(e.amount)
			if t.Balance.GreaterThan(total) {
				t.Balance = total
			}
			continue
		}
		tendered = tendered.Add(e.amount)
		applied := e.amount
		if applied.GreaterThan(t.Balance) {
			applied = t.Balance
		}
		t.AppliedByPayment[e.paymentID] = t.AppliedByPayment[e.paymentID].Add(applied)
		t.Balance = t.Balance.Sub(applied)
	}

	for _, applied := range t.AppliedByPayment {
		t.Paid = t.Paid.Add(applied)
	}
	t.Credit = tendered.Sub(t.Refunded).Sub(t.Paid)
	if t.Credit.IsNegative() {
		t.Credit = decimal.Zero
	}
	t.Status = StatusForBalance(total, t.Balance)
	return t
}

// RefundableAmount returns how much of a payment can still be refunded:
// the portion currently applied to the invoice.
func (t InvoiceTotals) RefundableAmount(paymentID int) decimal.Decimal {
	applied, ok := t.AppliedByPayment[paymentID]
	if !ok || applied.IsNegative() {
		return decimal.Zero
	}
	return applied
}
