package elo

import (
	"arena-bot/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdate(t *testing.T) {
	cases := []struct {
		name           string
		winner, loser  int
		wantW, wantL   int
		wantWD, wantLD int
	}{
		{"equal ratings", 1000, 1000, 1016, 984, 16, -16},
		{"heavy underdog", 500, 1500, 532, 1468, 32, -32},
		{"extreme underdog", 90, 2800, 122, 2768, 32, -32},
		{"slight underdog", 1030, 1101, 1049, 1082, 19, -19},
		{"favourite", 1132, 950, 1140, 942, 8, -8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, l := Update(tc.winner, tc.loser)
			assert.Equal(t, tc.wantW, w)
			assert.Equal(t, tc.wantL, l)
			assert.Equal(t, tc.wantWD, w-tc.winner)
			assert.Equal(t, tc.wantLD, l-tc.loser)
		})
	}
}

func TestUpdateSequentialUsesLiveRatings(t *testing.T) {
	a, b := Update(1000, 1000)
	assert.Equal(t, 1016, a)
	assert.Equal(t, 984, b)

	b, a = Update(b, a)
	assert.Equal(t, 1001, b)
	assert.Equal(t, 999, a)
}

func TestExpectedScoreSymmetry(t *testing.T) {
	for _, pair := range [][2]int{{1000, 1000}, {800, 1300}, {1500, 20}} {
		sum := ExpectedScore(pair[0], pair[1]) + ExpectedScore(pair[1], pair[0])
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
	assert.InDelta(t, 0.5, ExpectedScore(1200, 1200), 1e-12)
}

func TestTierFor(t *testing.T) {
	cases := map[int]domain.Tier{
		0:    domain.TierBronze,
		799:  domain.TierBronze,
		800:  domain.TierSilver,
		949:  domain.TierSilver,
		950:  domain.TierGold,
		1000: domain.TierGold,
		1049: domain.TierGold,
		1050: domain.TierPlatinum,
		1199: domain.TierPlatinum,
		1200: domain.TierDiamond,
		1299: domain.TierDiamond,
		1300: domain.TierMaster,
		2800: domain.TierMaster,
	}
	for rating, want := range cases {
		assert.Equal(t, want, TierFor(rating), "rating %d", rating)
	}
}
