package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Decimal accepts both quoted and bare numeric YAML scalars.
type Decimal struct {
	decimal.Decimal
}

// D wraps v.
func D(v decimal.Decimal) Decimal { return Decimal{Decimal: v} }

// UnmarshalYAML parses the scalar with shopspring/decimal so "0.1" stays exact.
func (d *Decimal) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		d.Decimal = decimal.Zero
		return nil
	}
	text := strings.TrimSpace(node.Value)
	if text == "" || text == "~" || text == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	v, err := decimal.NewFromString(text)
	if err != nil {
		return fmt.Errorf("line %d: invalid decimal %q", node.Line, node.Value)
	}
	d.Decimal = v
	return nil
}

// MarshalYAML writes the canonical string form.
func (d Decimal) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Duration accepts Go duration strings ("250ms", "1m30s") or integer milliseconds.
type Duration time.Duration

// UnmarshalYAML supports both the string and millisecond forms.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = 0
		return nil
	}
	text := strings.TrimSpace(node.Value)
	if text == "" {
		*d = 0
		return nil
	}
	if parsed, err := time.ParseDuration(text); err == nil {
		*d = Duration(parsed)
		return nil
	}
	var ms int64
	if err := node.Decode(&ms); err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, node.Value)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

// MarshalYAML writes the duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
