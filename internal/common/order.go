package common

import "fmt"

// Order is a resting order as reconstructed from the feed. Price is the raw,
// unscaled wire integer.
type Order struct {
	ID        uint64 // Exchange order reference
	Price     uint64 // Unscaled limit price
	Quantity  uint64 // Remaining quantity
	Side      Side   // Order side
	Timestamp uint64 // Nanoseconds, protocol specific epoch
}

func (order Order) String() string {
	return fmt.Sprintf(
		`ID:        %d
Price:     %d
Quantity:  %d
Side:      %v
Timestamp: %d`,
		order.ID,
		order.Price,
		order.Quantity,
		order.Side,
		order.Timestamp,
	)
}
