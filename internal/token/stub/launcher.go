// Package stub provides an in-memory Launcher for tests and dry runs.
package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"launch-curve-engine/internal/token"
)

// Launcher implements token.Launcher without touching any network.
type Launcher struct {
	mu sync.Mutex

	// Mint and ConfirmedSupply are returned from CreateToken.
	Mint            string
	ConfirmedSupply int64

	// CreateErr, when set, fails every CreateToken call.
	CreateErr error

	// FailTransfersTo lists addresses whose transfers fail.
	FailTransfersTo map[string]error

	// Recorded calls.
	Created   []token.CreateTokenParams
	Transfers []TransferCall
}

// TransferCall records one Transfer invocation.
type TransferCall struct {
	Mint      string
	ToAddress string
	Amount    int64
}

var _ token.Launcher = (*Launcher)(nil)

// NewLauncher creates a stub launcher returning the given mint and supply.
func NewLauncher(mint string, confirmedSupply int64) *Launcher {
	return &Launcher{
		Mint:            mint,
		ConfirmedSupply: confirmedSupply,
		FailTransfersTo: make(map[string]error),
	}
}

// CreateToken records the call and returns the configured result.
func (l *Launcher) CreateToken(_ context.Context, params token.CreateTokenParams) (*token.CreateTokenResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.CreateErr != nil {
		return nil, l.CreateErr
	}
	l.Created = append(l.Created, params)
	return &token.CreateTokenResult{
		Mint:            l.Mint,
		ConfirmedSupply: l.ConfirmedSupply,
		TxRef:           fmt.Sprintf("create-tx-%d", len(l.Created)),
	}, nil
}

// Transfer records the call and returns a synthetic signature.
func (l *Launcher) Transfer(_ context.Context, mint, toAddress string, amount int64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err, ok := l.FailTransfersTo[toAddress]; ok {
		if err == nil {
			err = errors.New("transfer failed")
		}
		return "", err
	}
	l.Transfers = append(l.Transfers, TransferCall{Mint: mint, ToAddress: toAddress, Amount: amount})
	return fmt.Sprintf("transfer-tx-%d", len(l.Transfers)), nil
}
