package service

import "context"

// TrustScoreProvider supplies the externally computed reputation score
// (0-100) for a wallet. The engine never computes scores itself.
type TrustScoreProvider interface {
	TrustScore(ctx context.Context, address string) (int, error)
}

// StaticTrustScore returns the same score for every address, matching
// the placeholder the savings contract ships with.
type StaticTrustScore int

func (s StaticTrustScore) TrustScore(_ context.Context, _ string) (int, error) {
	return int(s), nil
}
