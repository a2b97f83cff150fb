package enums

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitionTable(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusPending:    {OrderStatusAssigned, OrderStatusCancelled},
		OrderStatusAssigned:   {OrderStatusInProgress, OrderStatusCancelled},
		OrderStatusInProgress: {OrderStatusCompleted, OrderStatusCancelled},
		OrderStatusCompleted:  {},
		OrderStatusCancelled:  {},
	}

	for _, from := range OrderStatuses() {
		for _, to := range OrderStatuses() {
			want := false
			for _, candidate := range allowed[from] {
				if candidate == to {
					want = true
				}
			}
			assert.Equalf(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatus("BOGUS").IsTerminal())
	assert.Empty(t, OrderStatusCompleted.AllowedTransitions())
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("IN_PROGRESS")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusInProgress, status)

	_, err = ParseOrderStatus("in_progress")
	require.Error(t, err)
}

func TestParseAssignmentStatus(t *testing.T) {
	status, err := ParseAssignmentStatus("COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, AssignmentStatusCompleted, status)

	_, err = ParseAssignmentStatus("CANCELLED")
	require.Error(t, err)
}

func TestParseTrimsWhitespace(t *testing.T) {
	role, err := ParseActorRole(" collector ")
	require.NoError(t, err)
	assert.Equal(t, ActorRoleCollector, role)

	payment, err := ParsePaymentStatus("PAID\n")
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPaid, payment)

	_, err = ParseOutboxEventType("work_order.deleted")
	assert.EqualError(t, err, `invalid outbox event type "work_order.deleted"`)
}

func TestStatusJSONIgnoresCase(t *testing.T) {
	var body struct {
		Order   OrderStatus    `json:"order"`
		Payment *PaymentStatus `json:"payment"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"order":" in_progress ","payment":"Paid"}`), &body))
	assert.Equal(t, OrderStatusInProgress, body.Order)
	require.NotNil(t, body.Payment)
	assert.Equal(t, PaymentStatusPaid, *body.Payment)

	require.NoError(t, json.Unmarshal([]byte(`{"order":"done"}`), &body))
	assert.Equal(t, OrderStatus("DONE"), body.Order)
	assert.False(t, body.Order.IsValid())

	assert.Error(t, json.Unmarshal([]byte(`{"order":3}`), &body))
}
