package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderStatusValid(t *testing.T) {
	for _, s := range []OrderStatus{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		require.True(t, s.Valid(), s)
	}
	require.False(t, OrderStatus("refunded").Valid())
	require.False(t, OrderStatus("").Valid())
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusDelivered, true},
		{StatusShipped, StatusDelivered, true},
		{StatusDelivered, StatusPending, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusDelivered, true},
	}
	for _, c := range cases {
		require.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTotalUnits(t *testing.T) {
	o := Order{OrderItems: []OrderItem{{Quantity: 3}, {Quantity: 4}}}
	require.Equal(t, 7, o.TotalUnits())
}
