// Package payment exposes the port the lifecycle uses to confirm that dues
// attached to an activation request actually settled. The payments platform
// is a separate system; this package only asks it yes-or-no questions.
package payment

import "context"

// Confirmation is the settlement status of a single payment reference.
type Confirmation struct {
	Confirmed bool  `json:"confirmed"`
	Amount    int64 `json:"amount"`
}

// Confirmer checks whether a payment reference has settled and for how
// much. Unknown references return sentinel.ErrNotFound; outages return the
// underlying error so the caller can retry instead of rejecting the member.
type Confirmer interface {
	Check(ctx context.Context, paymentRef string) (Confirmation, error)
}
