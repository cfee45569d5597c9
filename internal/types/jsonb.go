package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

var (
	_ sql.Scanner   = (*Areas)(nil)
	_ driver.Valuer = Areas{}
)

// scanJSONB scans a JSONB database value into a Go pointer. It handles nil,
// []byte, and string representations from different drivers.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (a *Areas) Scan(value interface{}) error {
	if value == nil {
		*a = Areas{}
		return nil
	}
	return scanJSONB(a, value)
}

// Value implements the driver.Valuer interface. Nil slices are written as
// empty arrays so the column never holds JSON null members.
func (a Areas) Value() (driver.Value, error) {
	out := a
	if out.Names == nil {
		out.Names = []string{}
	}
	if out.SimplePolygons == nil {
		out.SimplePolygons = []Polygon{}
	}
	return json.Marshal(out)
}
