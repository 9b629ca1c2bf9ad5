package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/voxcard/ajo-engine/internal/config"
)

// Gas estimation heuristic carried over from the treasury frontend
// service: a base cost plus a per-byte cost on the message payload.
// This is an admission heuristic, not a fee quote.
const (
	gasBaseCost    = 100_000
	gasCostPerByte = 100
)

// BalanceQuerier reports the treasury's spendable balance, in base
// units of the chain denom. Implemented by the chain client.
type BalanceQuerier interface {
	Balance(ctx context.Context, address string) (int64, error)
}

// TreasuryService decides whether a submission qualifies for a
// fee-sponsored (gasless) execution. Pure decision logic; it changes no
// state.
type TreasuryService struct {
	cfg     config.TreasuryConfig
	balance BalanceQuerier
	log     zerolog.Logger
}

func NewTreasuryService(cfg config.TreasuryConfig, balance BalanceQuerier, log zerolog.Logger) *TreasuryService {
	return &TreasuryService{cfg: cfg, balance: balance, log: log}
}

// EstimateGas is a deterministic function of payload size, capped at
// the configured maximum subsidy.
func (s *TreasuryService) EstimateGas(payload []byte) int64 {
	estimated := int64(gasBaseCost) + int64(len(payload))*gasCostPerByte
	if estimated > s.cfg.MaxGasSubsidy {
		return s.cfg.MaxGasSubsidy
	}
	return estimated
}

// IsEligible reports whether the treasury will sponsor estimatedGas for
// a call against contractAddress.
func (s *TreasuryService) IsEligible(ctx context.Context, contractAddress string, estimatedGas int64) (bool, error) {
	if !s.whitelisted(contractAddress) {
		return false, nil
	}
	if estimatedGas > s.cfg.MaxGasSubsidy {
		return false, nil
	}

	balance, err := s.balance.Balance(ctx, s.cfg.Address)
	if err != nil {
		return false, fmt.Errorf("query treasury balance: %w", err)
	}
	if balance < s.cfg.MinBalance || balance < estimatedGas {
		s.log.Debug().Int64("balance", balance).Int64("estimated_gas", estimatedGas).Msg("treasury balance too low for subsidy")
		return false, nil
	}
	return true, nil
}

func (s *TreasuryService) whitelisted(contractAddress string) bool {
	for _, address := range s.cfg.WhitelistedContracts {
		if address == contractAddress {
			return true
		}
	}
	return false
}
