package engine

import "context"

// SimulatedExecution accepts every order. Historical runs use it; the fill
// model (slippage and commission) lives in the engine itself, so there is
// nothing to do here.
type SimulatedExecution struct{}

func NewSimulatedExecution() *SimulatedExecution {
	return &SimulatedExecution{}
}

func (s *SimulatedExecution) OpenLong(ctx context.Context, symbol string, quantity, notionalUSD, price float64) error {
	return nil
}

func (s *SimulatedExecution) CloseLong(ctx context.Context, symbol string, quantity float64) error {
	return nil
}
