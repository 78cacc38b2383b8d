package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ChargeRequest describes one payment attempt for an asset's plan.
type ChargeRequest struct {
	AssetID  string
	PlanID   string
	Amount   float64
	Currency string
	Method   string
	Token    string // opaque payment token from the front end, may be empty
}

// Charge is a settled payment.
type Charge struct {
	PaymentID string
}

// Provider settles payments. A real settlement integration implements this
// interface and is passed to New in place of MockProvider.
type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (Charge, error)
}

// MockProvider accepts every payment unless Decline is set.
type MockProvider struct {
	Decline error
}

func (p *MockProvider) Charge(_ context.Context, req ChargeRequest) (Charge, error) {
	if p.Decline != nil {
		return Charge{}, p.Decline
	}
	suffix, err := randomHex(4)
	if err != nil {
		return Charge{}, err
	}
	return Charge{PaymentID: fmt.Sprintf("pay_%s_%s", req.AssetID, suffix)}, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
