package domain

import "fmt"

// Tier is an ordered rank bucket; higher is better.
type Tier int

const (
	TierBronze Tier = iota
	TierSilver
	TierGold
	TierPlatinum
	TierDiamond
	TierMaster
)

var tierNames = [...]string{"bronze", "silver", "gold", "platinum", "diamond", "master"}

func (t Tier) String() string {
	if t < TierBronze || t > TierMaster {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

func (t Tier) MarshalText() ([]byte, error) {
	if t < TierBronze || t > TierMaster {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(tierNames[t]), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	for i, name := range tierNames {
		if name == string(b) {
			*t = Tier(i)
			return nil
		}
	}
	return fmt.Errorf("unknown tier %q", string(b))
}

func TierPtr(t Tier) *Tier {
	return &t
}
