package metric

import "github.com/shopspring/decimal"

// Record is one daily provider record as decoded from JSON: flat
// numeric-string fields and/or action-list fields, plus date_start.
type Record map[string]interface{}

// ExtractValue resolves a metric's value from a provider record.
// This is the single tolerant boundary of the pipeline: every failure
// path (missing field, unexpected shape, unparseable number, absent
// action type) yields decimal.Zero, never an error, so downstream
// summation can assume totals are always defined numbers.
func ExtractValue(desc FieldDescriptor, record Record) decimal.Decimal {
	v, ok := record[desc.ProviderField]
	if !ok {
		return decimal.Zero
	}

	if desc.Standard {
		return toDecimal(v)
	}

	// Action-list field: scan [{action_type, value}] for the configured type.
	entries, ok := v.([]interface{})
	if !ok {
		return decimal.Zero
	}
	for _, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		actionType, _ := entry["action_type"].(string)
		if actionType != desc.ActionType {
			continue
		}
		return toDecimal(entry["value"])
	}
	return decimal.Zero
}

// toDecimal converts a decoded JSON value to a decimal.
// Provider numeric fields arrive as strings ("123.45"); JSON numbers
// unmarshal to float64. Anything else is zero.
func toDecimal(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case string:
		d, err := decimal.NewFromString(val)
		if err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	}
	return decimal.Zero
}
