package backend

import (
	"log/slog"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

// Property is one vendor parameter with its classification. A required
// property that the driver refuses fails the operation; an optional one is
// logged and skipped.
type Property struct {
	Name     string
	Value    any
	Required bool
}

// Required declares a property whose rejection is fatal.
func Required(name string, value any) Property {
	return Property{Name: name, Value: value, Required: true}
}

// Optional declares a cosmetic property whose rejection is tolerated.
func Optional(name string, value any) Property {
	return Property{Name: name, Value: value}
}

// PropertySetter applies one property and returns the vendor result code and
// whether the driver accepted it.
type PropertySetter func(name string, value any) (code int64, ok bool)

// ApplyProperties sets props in order. It stops at the first rejected
// required property and returns a ConfigRejected error naming it. Rejected
// optional properties are logged at warn level and returned by name.
func ApplyProperties(log *slog.Logger, driver codec.Driver, op string, set PropertySetter, props []Property) ([]string, error) {
	if log == nil {
		log = slog.Default()
	}
	var skipped []string
	for _, p := range props {
		code, ok := set(p.Name, p.Value)
		if ok {
			continue
		}
		if p.Required {
			return skipped, &codec.Error{
				Op:       op,
				Driver:   driver.String(),
				Property: p.Name,
				Code:     code,
				Err:      codec.ErrConfigRejected,
			}
		}
		log.Warn("optional property rejected",
			slog.String("driver", driver.String()),
			slog.String("operation", op),
			slog.String("property", p.Name),
			slog.Any("value", p.Value),
			slog.Int64("code", code),
		)
		skipped = append(skipped, p.Name)
	}
	return skipped, nil
}
