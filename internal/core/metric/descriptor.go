package metric

// Key identifies a measurable quantity (e.g. "spend", "impressions", "cpm").
type Key string

// Base metric keys covered by the default Meta field table.
const (
	KeySpend        Key = "spend"
	KeyImpressions  Key = "impressions"
	KeyClicks       Key = "clicks"
	KeyLinkClicks   Key = "link_clicks"
	KeyReach        Key = "reach"
	KeyFrequency    Key = "frequency"
	KeyCTR          Key = "ctr"
	KeyCPC          Key = "cpc"
	KeyCPM          Key = "cpm"
	KeyPurchases    Key = "purchases"
	KeyRevenue      Key = "revenue"
	KeyPurchaseROAS Key = "purchase_roas"
	KeyCostPerPurch Key = "cost_per_purchase"
)

// FieldDescriptor is the static configuration for one metric key.
// Standard fields map 1:1 to a flat numeric field on the provider record.
// Non-standard fields live inside an action list ([{action_type, value}])
// and are matched by ActionType.
type FieldDescriptor struct {
	// ProviderField is the field name requested from and read off the
	// provider's daily record.
	ProviderField string

	// ActionType selects the entry inside an action-list field.
	// Only meaningful when Standard is false.
	ActionType string

	// Standard marks a flat numeric field (as opposed to an action list).
	Standard bool

	// RatioComponents, when set, marks a derived metric whose period value
	// must be recomputed as sum(numerator)/sum(denominator) rather than
	// summed or averaged daily. Order is [numerator, denominator].
	RatioComponents *[2]Key

	// PerMille scales the recomputed ratio by 1000 (cost-per-mille
	// convention). Only meaningful for ratio metrics.
	PerMille bool
}

// IsRatio reports whether the metric's period value is derived from
// summed components.
func (d FieldDescriptor) IsRatio() bool {
	return d.RatioComponents != nil
}

// FieldTable maps metric keys to their provider field descriptors.
// The table is injected into the engine at construction time so tests
// can substitute fixtures. Descriptor configuration is trusted: ratio
// components are expected to resolve to fetchable fields and are not
// validated recursively.
type FieldTable map[Key]FieldDescriptor

// Descriptor returns the descriptor for key and whether it exists.
func (t FieldTable) Descriptor(key Key) (FieldDescriptor, bool) {
	d, ok := t[key]
	return d, ok
}

// Known reports whether the table defines key.
func (t FieldTable) Known(key Key) bool {
	_, ok := t[key]
	return ok
}

// ProviderFields returns the deduplicated set of provider field names
// needed to resolve the given keys, including the fields backing ratio
// components. Used to build the insights request's field list.
func (t FieldTable) ProviderFields(keys []Key) []string {
	seen := make(map[string]struct{})
	var fields []string

	var add func(k Key)
	add = func(k Key) {
		d, ok := t[k]
		if !ok {
			return
		}
		if _, dup := seen[d.ProviderField]; !dup {
			seen[d.ProviderField] = struct{}{}
			fields = append(fields, d.ProviderField)
		}
		if d.RatioComponents != nil {
			add(d.RatioComponents[0])
			add(d.RatioComponents[1])
		}
	}

	for _, k := range keys {
		add(k)
	}
	return fields
}

func ratio(num, den Key) *[2]Key {
	return &[2]Key{num, den}
}

// MetaFields returns the default field table for the Meta insights API.
// Callers embed this table or build their own; the engine never reads a
// package-level table.
func MetaFields() FieldTable {
	return FieldTable{
		KeySpend:       {ProviderField: "spend", Standard: true},
		KeyImpressions: {ProviderField: "impressions", Standard: true},
		KeyClicks:      {ProviderField: "clicks", Standard: true},
		KeyLinkClicks: {
			ProviderField: "actions",
			ActionType:    "link_click",
		},
		KeyReach:     {ProviderField: "reach", Standard: true},
		KeyFrequency: {ProviderField: "frequency", Standard: true},
		KeyCTR: {
			ProviderField:   "ctr",
			Standard:        true,
			RatioComponents: ratio(KeyClicks, KeyImpressions),
		},
		KeyCPC: {
			ProviderField:   "cpc",
			Standard:        true,
			RatioComponents: ratio(KeySpend, KeyClicks),
		},
		KeyCPM: {
			ProviderField:   "cpm",
			Standard:        true,
			RatioComponents: ratio(KeySpend, KeyImpressions),
			PerMille:        true,
		},
		KeyPurchases: {
			ProviderField: "actions",
			ActionType:    "purchase",
		},
		KeyRevenue: {
			ProviderField: "action_values",
			ActionType:    "purchase",
		},
		KeyPurchaseROAS: {
			ProviderField:   "purchase_roas",
			ActionType:      "omni_purchase",
			RatioComponents: ratio(KeyRevenue, KeySpend),
		},
		KeyCostPerPurch: {
			ProviderField:   "spend",
			Standard:        true,
			RatioComponents: ratio(KeySpend, KeyPurchases),
		},
	}
}
