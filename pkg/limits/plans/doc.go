// Package plans defines subscription tiers, their features and quota ceilings.
//
// The catalog maps each Tier to exactly one Definition. Features and quotas
// are typed keys; string names coming from callers are converted once with
// ParseFeature and ParseQuota. A quota ceiling is either finite or Unlimited.
//
//	catalog := plans.DefaultCatalog()
//	def, _ := catalog.Lookup(plans.TierProfessional)
//	def.HasFeature(plans.FeatureBulkOperations) // true
//
// Deployments can replace the built-in catalog with a YAML file loaded by
// LoadCatalog. The file is validated against an embedded JSON Schema before
// it is used.
package plans
