package tier

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Tier is the group-level subscription level held in the shared backend.
type Tier string

const (
	Free    Tier = "free"
	Premium Tier = "premium"
	Family  Tier = "family"
)

// Parse converts a stored tier string. Matching is case-insensitive and surrounding
// whitespace is ignored.
func Parse(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case Free, Premium, Family:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
}

// OrFree parses s and falls back to Free for unknown or empty values.
// Stored records are read with it so a malformed value never unlocks anything.
func OrFree(s string) Tier {
	t, err := Parse(s)
	if err != nil {
		return Free
	}
	return t
}

func (t Tier) String() string {
	return string(t)
}

// IsPaid reports whether the tier unlocks premium features.
func (t Tier) IsPaid() bool {
	return t == Premium || t == Family
}

// UnmarshalText lets env and JSON decoders parse tiers directly.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Record is the authoritative group tier value: {subscriptionTier, tierUpdatedAt}.
type Record struct {
	Tier      Tier
	UpdatedAt time.Time
}

// Default is the value reported for groups with no stored tier.
func Default() Record {
	return Record{Tier: Free}
}

// ProductMap maps purchase-SDK product identifiers to tiers.
type ProductMap map[string]Tier

// Resolve returns the tier for productID. Unknown products map to Premium:
// an active entitlement always unlocks at least the individual paid tier.
func (m ProductMap) Resolve(productID string) Tier {
	if t, ok := m[productID]; ok {
		return t
	}
	return Premium
}

// UnmarshalText parses "product:tier,product2:tier" as used in env config.
func (m *ProductMap) UnmarshalText(text []byte) error {
	out := make(ProductMap)
	for pair := range strings.SplitSeq(string(text), ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		product, raw, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(product) == "" {
			return fmt.Errorf("%w: %q", ErrInvalidProductMap, pair)
		}
		t, err := Parse(raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidProductMap, err)
		}
		out[strings.TrimSpace(product)] = t
	}
	*m = out
	return nil
}

// String renders the map in the same "product:tier" form UnmarshalText accepts.
func (m ProductMap) String() string {
	keys := slices.Sorted(maps.Keys(m))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+string(m[k]))
	}
	return strings.Join(parts, ",")
}
