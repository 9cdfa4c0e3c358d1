package pricing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// TaxMode selects where an item's tax rate comes from
type TaxMode int

const (
	// TaxModeGlobal applies one document-level percentage to every item.
	TaxModeGlobal TaxMode = 0
	// TaxModePerItem lets each item carry its own percentage.
	TaxModePerItem TaxMode = 1
)

func (m TaxMode) String() string {
	names := [...]string{"global", "per_item"}
	if int(m) < 0 || int(m) >= len(names) {
		return "global"
	}
	return names[m]
}

// ParseTaxMode accepts the JSON names plus a few spellings seen from form posts.
func ParseTaxMode(s string) (TaxMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "global", "":
		return TaxModeGlobal, true
	case "per_item", "peritem", "per-item", "item":
		return TaxModePerItem, true
	}
	return TaxModeGlobal, false
}

func (m TaxMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *TaxMode) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*m = TaxMode(i)
		return nil
	}
	mode, ok := ParseTaxMode(str)
	if !ok {
		return &json.UnsupportedValueError{Str: str}
	}
	*m = mode
	return nil
}

func (m TaxMode) Value() (driver.Value, error) {
	return int64(m), nil
}

func (m *TaxMode) Scan(value interface{}) error {
	if value == nil {
		*m = TaxModeGlobal
		return nil
	}
	switch v := value.(type) {
	case int64:
		*m = TaxMode(v)
	case int32:
		*m = TaxMode(v)
	case int:
		*m = TaxMode(v)
	default:
		return fmt.Errorf("cannot scan %T into TaxMode", value)
	}
	return nil
}
