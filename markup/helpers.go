package markup

import (
	"fmt"

	"github.com/admsmc/dykstra-funeral-website-sub003/docgen"
)

// helper is one named formatting function available to templates. The set
// is fixed; templates cannot register their own.
type helper struct {
	arity int
	apply func(args []docgen.Value) (string, error)
}

func builtinHelpers() map[string]helper {
	return map[string]helper{
		"formatDate": {
			arity: 2,
			apply: func(args []docgen.Value) (string, error) {
				layout := args[0]
				value := args[1]
				if layout.Kind != docgen.ValueString {
					return "", fmt.Errorf("formatDate layout must be a string")
				}
				if value.Kind != docgen.ValueDate {
					return "", fmt.Errorf("formatDate needs a date, got %s", value.Kind)
				}
				return value.Time().Format(layout.Str()), nil
			},
		},
		"formatCurrency": {
			arity: 1,
			apply: func(args []docgen.Value) (string, error) {
				value := args[0]
				if value.Kind != docgen.ValueNumber {
					return "", fmt.Errorf("formatCurrency needs a number, got %s", value.Kind)
				}
				return docgen.FormatCurrency(value.Num()), nil
			},
		},
		"ordinal": {
			arity: 1,
			apply: func(args []docgen.Value) (string, error) {
				value := args[0]
				if value.Kind != docgen.ValueNumber {
					return "", fmt.Errorf("ordinal needs a number, got %s", value.Kind)
				}
				return docgen.FormatOrdinal(int(value.Num())), nil
			},
		},
	}
}
