package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// decodeArgs unmarshals command arguments keeping numbers as json.Number so
// integer parameters are bound exactly.
func decodeArgs(args json.RawMessage, dest any) error {
	if len(args) == 0 {
		return fmt.Errorf("missing arguments")
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// bindValues converts JSON parameter values to SQLite bind values: integral
// numbers bind as INTEGER, other numbers as REAL, booleans as 0 or 1, strings
// and null as themselves.
func bindValues(params []any) ([]any, error) {
	values := make([]any, len(params))
	for i, p := range params {
		v, err := bindValue(p)
		if err != nil {
			return nil, fmt.Errorf("parameter ?%d: %w", i+1, err)
		}
		values[i] = v
	}
	return values, nil
}

func bindValue(p any) (any, error) {
	switch v := p.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", v.String())
		}
		return f, nil
	case float64:
		if v == float64(int64(v)) {
			return int64(v), nil
		}
		return v, nil
	case int, int32, int64:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", p)
	}
}

// isBulk reports whether execute params are a list of parameter rows.
func isBulk(params []any) bool {
	if len(params) == 0 {
		return false
	}
	_, ok := params[0].([]any)
	return ok
}

// rowValues makes scanned column values JSON friendly. Blobs are sent as
// arrays of byte values, timestamps as RFC 3339 strings.
func rowValues(row map[string]any) map[string]any {
	for k, v := range row {
		switch val := v.(type) {
		case []byte:
			bs := make([]int, len(val))
			for i, b := range val {
				bs[i] = int(b)
			}
			row[k] = bs
		case time.Time:
			row[k] = val.Format(time.RFC3339Nano)
		}
	}
	return row
}

var pragmaName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// pragmaStatement renders "PRAGMA key = value". The key must be a plain
// (optionally schema-qualified) identifier; string values are quoted.
func pragmaStatement(key string, value any) (string, error) {
	if !pragmaName.MatchString(key) {
		return "", fmt.Errorf("invalid pragma name %q", key)
	}
	var literal string
	switch v := value.(type) {
	case nil:
		literal = "NULL"
	case bool:
		literal = strconv.FormatBool(v)
	case json.Number:
		literal = v.String()
	case float64:
		literal = strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		literal = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	default:
		return "", fmt.Errorf("unsupported pragma value type %T", value)
	}
	return fmt.Sprintf("PRAGMA %s = %s", key, literal), nil
}
