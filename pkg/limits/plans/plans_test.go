package plans

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validCatalogYAML = `
plans:
  - tier: starter
    display_name: Starter
    features:
      bulkOperations: false
      externalSharing: true
    limits:
      clientSpaces: 2
      teamMembers: 3
  - tier: professional
    display_name: Professional
    features:
      bulkOperations: true
    limits:
      clientSpaces: 20
  - tier: business
    features:
      bulkOperations: true
      apiAccess: true
    limits:
      clientSpaces: 200
  - tier: enterprise
    display_name: Enterprise
    features:
      bulkOperations: true
      apiAccess: true
      singleSignOn: true
    limits:
      clientSpaces: unlimited
      storageGB: unlimited
`

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	defs := catalog.Definitions()
	if len(defs) != len(Tiers) {
		t.Fatalf("expected %d definitions, got %d", len(Tiers), len(defs))
	}
	for i, def := range defs {
		if def.Tier != Tiers[i] {
			t.Errorf("definition %d: expected tier %s, got %s", i, Tiers[i], def.Tier)
		}
		for _, q := range Quotas {
			_, ok := def.Limit(q)
			if q.Scoped() && ok {
				t.Errorf("tier %s: built-in catalog must not set a ceiling for %s", def.Tier, q)
			}
			if !q.Scoped() && !ok {
				t.Errorf("tier %s: missing limit for %s", def.Tier, q)
			}
		}
		if len(def.Features) != len(Features) {
			t.Errorf("tier %s: expected %d feature flags, got %d", def.Tier, len(Features), len(def.Features))
		}
	}

	starter, _ := catalog.Lookup(TierStarter)
	if starter.HasFeature(FeatureBulkOperations) {
		t.Error("starter should not include bulkOperations")
	}
	if starter.Name() != "Starter" {
		t.Errorf("expected display name Starter, got %s", starter.Name())
	}

	enterprise, _ := catalog.Lookup(TierEnterprise)
	for _, f := range Features {
		if !enterprise.HasFeature(f) {
			t.Errorf("enterprise should include %s", f)
		}
	}
	if l, _ := enterprise.Limit(QuotaClientSpaces); !l.Unlimited {
		t.Error("enterprise clientSpaces should be unlimited")
	}

	if tier, ok := catalog.MinimumTierFor(FeatureBulkOperations); !ok || tier != TierProfessional {
		t.Errorf("expected professional as minimum tier for bulkOperations, got %s", tier)
	}
}

func TestLimitAllows(t *testing.T) {
	tests := []struct {
		name    string
		limit   Limit
		current int64
		want    bool
	}{
		{"below finite", Finite(3), 2, true},
		{"at finite", Finite(3), 3, false},
		{"above finite", Finite(3), 10, false},
		{"zero limit", Finite(0), 0, false},
		{"unlimited", Unlimited, 1 << 40, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.limit.Allows(tt.current); got != tt.want {
				t.Errorf("Allows(%d) = %v, want %v", tt.current, got, tt.want)
			}
		})
	}
}

func TestLimitJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Limit{"a": Finite(5), "b": Unlimited})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"a":5,"b":"unlimited"}` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var decoded map[string]Limit
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["a"] != Finite(5) || decoded["b"] != Unlimited {
		t.Errorf("decoded %+v", decoded)
	}

	for _, bad := range []string{`"lots"`, `-1`, `true`} {
		var l Limit
		if err := json.Unmarshal([]byte(bad), &l); err == nil {
			t.Errorf("expected error decoding %s", bad)
		}
	}
}

func TestParseNames(t *testing.T) {
	if tier, err := ParseTier(" Business "); err != nil || tier != TierBusiness {
		t.Errorf("ParseTier: got %s, %v", tier, err)
	}
	if _, err := ParseTier("platinum"); err == nil {
		t.Error("ParseTier should reject unknown tiers")
	}
	if f, err := ParseFeature("bulkOperations"); err != nil || f != FeatureBulkOperations {
		t.Errorf("ParseFeature: got %s, %v", f, err)
	}
	if _, err := ParseFeature("teleportation"); err == nil {
		t.Error("ParseFeature should reject unknown features")
	}
	if q, err := ParseQuota("clientSpaces"); err != nil || q != QuotaClientSpaces {
		t.Errorf("ParseQuota: got %s, %v", q, err)
	}
	if _, err := ParseQuota("widgets"); err == nil {
		t.Error("ParseQuota should reject unknown quotas")
	}
	if !QuotaExternalUsersPerClient.Scoped() || QuotaClientSpaces.Scoped() {
		t.Error("only externalUsersPerClient is counted per client space")
	}
	if TierStarter.Rank() >= TierEnterprise.Rank() {
		t.Error("starter should rank below enterprise")
	}
}

func TestSubscriptionState(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name        string
		sub         Subscription
		wantCurrent bool
		wantExpired bool
	}{
		{"active", Subscription{Status: StatusActive}, true, false},
		{"trial running", Subscription{Status: StatusTrial, TrialExpiry: &future}, true, false},
		{"trial expired", Subscription{Status: StatusTrial, TrialExpiry: &past}, true, true},
		{"trial without expiry", Subscription{Status: StatusTrial}, true, false},
		{"suspended", Subscription{Status: StatusSuspended}, false, false},
		{"cancelled", Subscription{Status: StatusCancelled}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.Current(); got != tt.wantCurrent {
				t.Errorf("Current() = %v, want %v", got, tt.wantCurrent)
			}
			if got := tt.sub.TrialExpired(now); got != tt.wantExpired {
				t.Errorf("TrialExpired() = %v, want %v", got, tt.wantExpired)
			}
		})
	}
}

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(validCatalogYAML))
	if err != nil {
		t.Fatalf("ParseCatalog failed: %v", err)
	}

	starter, ok := catalog.Lookup(TierStarter)
	if !ok {
		t.Fatal("missing starter")
	}
	if l, _ := starter.Limit(QuotaClientSpaces); l.Unlimited || l.Value != 2 {
		t.Errorf("expected starter clientSpaces 2, got %s", l)
	}
	if !starter.HasFeature(FeatureExternalSharing) {
		t.Error("starter should include externalSharing")
	}
	if starter.HasFeature(FeatureAIAssist) {
		t.Error("unspecified features should default to false")
	}

	business, _ := catalog.Lookup(TierBusiness)
	if business.Name() != "business" {
		t.Errorf("expected tier name fallback, got %s", business.Name())
	}

	enterprise, _ := catalog.Lookup(TierEnterprise)
	if l, _ := enterprise.Limit(QuotaStorageGB); !l.Unlimited {
		t.Error("expected unlimited storageGB")
	}
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown feature",
			yaml:    strings.Replace(validCatalogYAML, "bulkOperations: false", "teleport: true", 1),
			wantErr: "schema validation failed",
		},
		{
			name:    "unknown tier",
			yaml:    strings.Replace(validCatalogYAML, "tier: business", "tier: platinum", 1),
			wantErr: "schema validation failed",
		},
		{
			name:    "negative limit",
			yaml:    strings.Replace(validCatalogYAML, "clientSpaces: 2", "clientSpaces: -2", 1),
			wantErr: "schema validation failed",
		},
		{
			name:    "bad sentinel",
			yaml:    strings.Replace(validCatalogYAML, "clientSpaces: unlimited", "clientSpaces: infinite", 1),
			wantErr: "schema validation failed",
		},
		{
			name:    "missing tier",
			yaml:    validCatalogYAML[:strings.Index(validCatalogYAML, "  - tier: enterprise")],
			wantErr: "missing definition for tier \"enterprise\"",
		},
		{
			name:    "duplicate tier",
			yaml:    strings.Replace(validCatalogYAML, "tier: business", "tier: professional", 1),
			wantErr: "duplicate definition",
		},
		{
			name:    "not yaml",
			yaml:    "plans: [",
			wantErr: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	if err := os.WriteFile(path, []byte(validCatalogYAML), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if _, ok := catalog.Lookup(TierProfessional); !ok {
		t.Error("expected professional tier")
	}

	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
