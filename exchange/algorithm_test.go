package exchange

import (
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bid(id, impID string, price float64) openrtb2.Bid {
	return openrtb2.Bid{ID: id, ImpID: impID, Price: price}
}

func TestHighestPricePicksMax(t *testing.T) {
	bids := []openrtb2.Bid{
		bid("a", "imp-1", 5.0),
		bid("b", "imp-1", 8.0),
		bid("c", "imp-2", 2.5),
	}

	winners := HighestPrice{}.CalcWinner(bids, 1.0)

	require.Len(t, winners, 2)
	assert.Equal(t, "b", winners["imp-1"].ID)
	assert.Equal(t, 8.0, winners["imp-1"].Price)
	assert.Equal(t, "c", winners["imp-2"].ID)

	// The winner's price is >= every eligible competitor's price.
	for _, b := range bids {
		if b.Price >= 1.0 {
			assert.GreaterOrEqual(t, winners[b.ImpID].Price, b.Price)
		}
	}
}

func TestHighestPriceTiesKeepFirstEncountered(t *testing.T) {
	bids := []openrtb2.Bid{
		bid("first", "imp-1", 4.0),
		bid("second", "imp-1", 4.0),
		bid("third", "imp-1", 4.0),
	}

	winners := HighestPrice{}.CalcWinner(bids, 0)
	assert.Equal(t, "first", winners["imp-1"].ID)
}

func TestReservePriceFiltersBids(t *testing.T) {
	bids := []openrtb2.Bid{
		bid("a", "imp-1", 9.99),
		bid("b", "imp-1", 3.0),
	}

	for _, algo := range []Algorithm{HighestPrice{}, SecondHighest{}} {
		winners := algo.CalcWinner(bids, 10.0)
		assert.Empty(t, winners, "%s must not select a bid below the reserve", algo.Name())
	}

	// A bid exactly at the reserve is eligible.
	winners := HighestPrice{}.CalcWinner([]openrtb2.Bid{bid("a", "imp-1", 10.0)}, 10.0)
	assert.Equal(t, "a", winners["imp-1"].ID)
}

func TestSecondHighestPicksSecondFromBottom(t *testing.T) {
	// Pins the observed behavior: ascending sort, index 1. With three bids
	// this is the middle price, not the runner-up.
	bids := []openrtb2.Bid{
		bid("low", "imp-1", 3.0),
		bid("mid", "imp-1", 7.0),
		bid("high", "imp-1", 9.0),
	}

	winners := SecondHighest{}.CalcWinner(bids, 1.0)
	require.Contains(t, winners, "imp-1")
	assert.Equal(t, "mid", winners["imp-1"].ID)
	assert.Equal(t, 7.0, winners["imp-1"].Price, "the winner keeps its own price")
}

func TestSecondHighestSingleBid(t *testing.T) {
	winners := SecondHighest{}.CalcWinner([]openrtb2.Bid{bid("only", "imp-1", 6.0)}, 1.0)
	assert.Equal(t, "only", winners["imp-1"].ID)
}

func TestSecondHighestTwoBids(t *testing.T) {
	bids := []openrtb2.Bid{
		bid("low", "imp-1", 2.0),
		bid("high", "imp-1", 5.0),
	}
	winners := SecondHighest{}.CalcWinner(bids, 1.0)
	assert.Equal(t, "high", winners["imp-1"].ID)
}

func TestCalcWinnerIsPure(t *testing.T) {
	bids := []openrtb2.Bid{
		bid("a", "imp-1", 5.0),
		bid("b", "imp-1", 8.0),
		bid("c", "imp-2", 0.5),
	}

	for _, algo := range []Algorithm{HighestPrice{}, SecondHighest{}} {
		first := algo.CalcWinner(bids, 1.0)
		second := algo.CalcWinner(bids, 1.0)
		assert.Equal(t, first, second, "%s must be idempotent", algo.Name())
	}
}

func TestAlgorithmByName(t *testing.T) {
	algo, err := AlgorithmByName("first_price")
	require.NoError(t, err)
	assert.Equal(t, "First highest", algo.Name())

	algo, err = AlgorithmByName("second_price")
	require.NoError(t, err)
	assert.Equal(t, "Second highest", algo.Name())

	_, err = AlgorithmByName("third_price")
	assert.Error(t, err)
}
