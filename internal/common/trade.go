package common

import "fmt"

// Trade is a print observed on the feed, either from an execution against a
// resting order or from a trade message that does not touch the book.
type Trade struct {
	Timestamp uint64
	Price     uint64
	Quantity  uint64
	Sign      TradeSign
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`Timestamp: %d
Price:     %d
Quantity:  %d
Sign:      %c`,
		t.Timestamp,
		t.Price,
		t.Quantity,
		t.Sign.Byte(),
	)
}
