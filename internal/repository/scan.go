package repository

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
)

// sqliteTimeLayout is fixed-width so TEXT timestamps sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// timeArg converts t into the representation the dialect stores.
func (s *Store) timeArg(t time.Time) any {
	if s.Dialect() == dialect.SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// dbTime scans both TIMESTAMPTZ and TEXT timestamps.
type dbTime struct{ time.Time }

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if p, err := time.Parse(layout, s); err == nil {
			t.Time = p.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}

// jsonColumn scans a JSON/JSONB/TEXT column into the value it wraps.
type jsonColumn struct{ v any }

func (j jsonColumn) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported json value %T", src)
	}
	return json.Unmarshal(b, j.v)
}

// jsonArg marshals v for a JSON/TEXT column.
func jsonArg(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
