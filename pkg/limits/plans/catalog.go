package plans

import (
	"fmt"
	"sort"
)

// Catalog holds exactly one Definition per tier. It is built once and never
// mutated, so it is safe for concurrent reads.
type Catalog struct {
	definitions map[Tier]*Definition
}

// NewCatalog builds a catalog from defs, requiring exactly one definition
// per known tier.
func NewCatalog(defs []*Definition) (*Catalog, error) {
	c := &Catalog{definitions: make(map[Tier]*Definition, len(defs))}
	for _, def := range defs {
		if def == nil {
			continue
		}
		if !def.Tier.Valid() {
			return nil, fmt.Errorf("unknown plan tier %q", def.Tier)
		}
		if _, dup := c.definitions[def.Tier]; dup {
			return nil, fmt.Errorf("duplicate definition for tier %q", def.Tier)
		}
		c.definitions[def.Tier] = def
	}
	for _, tier := range Tiers {
		if _, ok := c.definitions[tier]; !ok {
			return nil, fmt.Errorf("missing definition for tier %q", tier)
		}
	}
	return c, nil
}

// Lookup returns the definition for tier.
func (c *Catalog) Lookup(tier Tier) (*Definition, bool) {
	def, ok := c.definitions[tier]
	return def, ok
}

// Definitions returns all definitions ordered from lowest to highest tier.
func (c *Catalog) Definitions() []*Definition {
	out := make([]*Definition, 0, len(c.definitions))
	for _, def := range c.definitions {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Tier.Rank() < out[j].Tier.Rank()
	})
	return out
}

// MinimumTierFor returns the lowest tier that includes feature f.
func (c *Catalog) MinimumTierFor(f Feature) (Tier, bool) {
	for _, def := range c.Definitions() {
		if def.HasFeature(f) {
			return def.Tier, true
		}
	}
	return "", false
}

// DefaultCatalog returns the built-in plan catalog. It sets no ceiling for
// QuotaExternalUsersPerClient; a catalog file must supply one before that
// quota can be enforced.
func DefaultCatalog() *Catalog {
	catalog, err := NewCatalog([]*Definition{
		{
			Tier:        TierStarter,
			DisplayName: "Starter",
			Features: featureSet(
				FeatureExternalSharing,
			),
			Limits: map[Quota]Limit{
				QuotaClientSpaces:       Finite(3),
				QuotaTeamMembers:        Finite(3),
				QuotaAIRequestsPerMonth: Finite(0),
				QuotaStorageGB:          Finite(5),
			},
		},
		{
			Tier:        TierProfessional,
			DisplayName: "Professional",
			Features: featureSet(
				FeatureBulkOperations,
				FeatureCustomBranding,
				FeatureExternalSharing,
				FeatureAIAssist,
			),
			Limits: map[Quota]Limit{
				QuotaClientSpaces:       Finite(25),
				QuotaTeamMembers:        Finite(10),
				QuotaAIRequestsPerMonth: Finite(500),
				QuotaStorageGB:          Finite(100),
			},
		},
		{
			Tier:        TierBusiness,
			DisplayName: "Business",
			Features: featureSet(
				FeatureBulkOperations,
				FeatureCustomBranding,
				FeatureExternalSharing,
				FeatureAPIAccess,
				FeatureAuditExport,
				FeatureAIAssist,
			),
			Limits: map[Quota]Limit{
				QuotaClientSpaces:       Finite(100),
				QuotaTeamMembers:        Finite(50),
				QuotaAIRequestsPerMonth: Finite(5000),
				QuotaStorageGB:          Finite(1000),
			},
		},
		{
			Tier:        TierEnterprise,
			DisplayName: "Enterprise",
			Features:    featureSet(Features...),
			Limits: map[Quota]Limit{
				QuotaClientSpaces:       Unlimited,
				QuotaTeamMembers:        Unlimited,
				QuotaAIRequestsPerMonth: Unlimited,
				QuotaStorageGB:          Unlimited,
			},
		},
	})
	if err != nil {
		panic(fmt.Sprintf("plans: invalid built-in catalog: %v", err))
	}
	return catalog
}

// featureSet returns a map with every known feature present, true for the
// enabled ones.
func featureSet(enabled ...Feature) map[Feature]bool {
	set := make(map[Feature]bool, len(Features))
	for _, f := range Features {
		set[f] = false
	}
	for _, f := range enabled {
		set[f] = true
	}
	return set
}
