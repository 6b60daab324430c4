package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Fulfillment counts the outcomes of the order and returns workflows.
// A nil *Fulfillment is a valid no-op recorder.
type Fulfillment struct {
	inventory   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	returns     *prometheus.CounterVec
	refunds     *prometheus.CounterVec
}

// NewFulfillment registers the workflow counters on reg.
func NewFulfillment(reg prometheus.Registerer) *Fulfillment {
	if reg == nil {
		return &Fulfillment{}
	}
	inventory := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_inventory_operations_total",
		Help: "Inventory ledger operations by kind and outcome.",
	}, []string{"operation", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_order_transitions_total",
		Help: "Order status transitions by target status and outcome.",
	}, []string{"to", "outcome"})
	returns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_return_status_total",
		Help: "Return request status changes by target status.",
	}, []string{"status"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_refunds_total",
		Help: "Refund gateway calls by gateway and outcome.",
	}, []string{"gateway", "outcome"})
	reg.MustRegister(inventory, transitions, returns, refunds)
	return &Fulfillment{
		inventory:   inventory,
		transitions: transitions,
		returns:     returns,
		refunds:     refunds,
	}
}

// InventoryOperation counts a reserve/release attempt.
func (f *Fulfillment) InventoryOperation(operation string, err error) {
	if f == nil || f.inventory == nil {
		return
	}
	f.inventory.WithLabelValues(normalizeLabel(operation), outcomeOf(err)).Inc()
}

// OrderTransition counts an attempted order status change.
func (f *Fulfillment) OrderTransition(to string, err error) {
	if f == nil || f.transitions == nil {
		return
	}
	f.transitions.WithLabelValues(normalizeLabel(to), outcomeOf(err)).Inc()
}

// ReturnStatus counts a committed return status change.
func (f *Fulfillment) ReturnStatus(status string) {
	if f == nil || f.returns == nil {
		return
	}
	f.returns.WithLabelValues(normalizeLabel(status)).Inc()
}

// Refund counts a refund gateway call.
func (f *Fulfillment) Refund(gateway string, err error) {
	if f == nil || f.refunds == nil {
		return
	}
	f.refunds.WithLabelValues(normalizeLabel(gateway), outcomeOf(err)).Inc()
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
