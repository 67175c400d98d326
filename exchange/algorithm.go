package exchange

import (
	"fmt"
	"sort"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/adsim/adsim/config"
)

// Algorithm scores a flattened bid collection into a winner per impression.
//
// Implementations must be pure: no side effects, and repeated calls with the
// same input yield the same output. Impressions with no eligible bid are
// simply absent from the result.
type Algorithm interface {
	CalcWinner(bids []openrtb2.Bid, reservedPrice float64) map[string]openrtb2.Bid
	Name() string
}

// AlgorithmByName resolves the configured scoring strategy.
func AlgorithmByName(name string) (Algorithm, error) {
	switch name {
	case config.AlgorithmFirstPrice:
		return HighestPrice{}, nil
	case config.AlgorithmSecondPrice:
		return SecondHighest{}, nil
	}
	return nil, fmt.Errorf("unknown auction algorithm %q", name)
}

// HighestPrice declares the highest-priced eligible bid per impression the
// winner. Ties keep the first-encountered bid; the order of the input
// collection is the documented tie-break.
type HighestPrice struct{}

func (HighestPrice) Name() string {
	return "First highest"
}

func (HighestPrice) CalcWinner(bids []openrtb2.Bid, reservedPrice float64) map[string]openrtb2.Bid {
	winners := make(map[string]openrtb2.Bid)
	for _, bid := range bids {
		if bid.Price < reservedPrice {
			continue
		}
		if current, ok := winners[bid.ImpID]; ok && current.Price >= bid.Price {
			continue
		}
		winners[bid.ImpID] = bid
	}
	return winners
}

// SecondHighest sorts each impression's eligible bids ascending by price and
// declares the bid at index 1 the winner (the sole bid when only one is
// eligible). With exactly two bids that is the higher one; with three or more
// it is the second-cheapest, not the runner-up by price, and the winner keeps
// its own price rather than being charged the second price.
//
// TODO: decide whether SecondHighest should instead charge the highest bid
// the runner-up's price; changing it breaks settlement compatibility with the
// current behavior, which is pinned by tests.
type SecondHighest struct{}

func (SecondHighest) Name() string {
	return "Second highest"
}

func (SecondHighest) CalcWinner(bids []openrtb2.Bid, reservedPrice float64) map[string]openrtb2.Bid {
	groups := make(map[string][]openrtb2.Bid)
	for _, bid := range bids {
		if bid.Price < reservedPrice {
			continue
		}
		groups[bid.ImpID] = append(groups[bid.ImpID], bid)
	}

	winners := make(map[string]openrtb2.Bid, len(groups))
	for impID, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Price < group[j].Price
		})
		winner := group[0]
		if len(group) > 1 {
			winner = group[1]
		}
		winners[impID] = winner
	}
	return winners
}
