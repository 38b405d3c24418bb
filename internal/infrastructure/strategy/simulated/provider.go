package simulatedstrategy

import (
	"context"
	"fmt"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/ports"
)

type provider struct {
	strategies map[string]ports.Strategy
}

func NewProvider(strategies ...ports.Strategy) (ports.StrategyProvider, error) {
	byPair := make(map[string]ports.Strategy, len(strategies))
	for _, strategy := range strategies {
		key := pairKey(strategy.UnderlyingAsset(), strategy.ShareAsset())
		if _, ok := byPair[key]; ok {
			return nil, fmt.Errorf("duplicated strategy for %s", key)
		}
		byPair[key] = strategy
	}
	return &provider{byPair}, nil
}

func (p *provider) GetStrategy(
	_ context.Context, underlyingAsset, shareAsset string,
) (ports.Strategy, error) {
	return p.strategies[pairKey(underlyingAsset, shareAsset)], nil
}

func pairKey(underlyingAsset, shareAsset string) string {
	return fmt.Sprintf("%s/%s", underlyingAsset, shareAsset)
}
