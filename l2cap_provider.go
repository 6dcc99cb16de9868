package asha

import (
	"context"

	"ashastream/internal/l2cap"
)

// l2capDialer adapts internal/l2cap to the L2CAPDialer interface.
type l2capDialer struct{}

// NewL2CAPDialer returns the default L2CAPDialer, backed by a raw BlueZ LE
// L2CAP CoC socket (internal/l2cap).
func NewL2CAPDialer() L2CAPDialer { return l2capDialer{} }

func (l2capDialer) Dial(ctx context.Context, addr Address, psm uint16) (L2CAPConn, error) {
	return l2cap.Dial(ctx, string(addr), psm)
}
