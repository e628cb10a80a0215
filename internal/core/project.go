package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Flatten projects a Record onto the fixed CSV schema.
//
// Scalar fields are copied as text, missing ones are empty. The first entry
// of "standards" fills the primary columns; the ids and codes of every later
// entry are joined with SecondarySeparator. When "standards" is missing,
// empty, or not a list, all five standard columns are empty.
func Flatten(rec Record) Row {
	row := Row{
		TaskID:           FormatValue(rec[ColTaskID]),
		LabelerID:        FormatValue(rec[ColLabelerID]),
		Timestamp:        FormatValue(rec[ColTimestamp]),
		TimeSpentSeconds: FormatValue(rec[ColTimeSpentSeconds]),
	}

	standards, _ := rec[keyStandards].([]any)
	if len(standards) == 0 {
		return row
	}

	primary := asObject(standards[0])
	row.PrimaryStandardID = FormatValue(primary[keyStandardID])
	row.PrimaryStandardCode = FormatValue(primary[keyStandardCode])
	row.PrimaryStandardDescription = FormatValue(primary[keyStandardDescription])

	if len(standards) > 1 {
		secondary := standards[1:]
		ids := make([]string, len(secondary))
		codes := make([]string, len(secondary))
		for i, s := range secondary {
			obj := asObject(s)
			ids[i] = FormatValue(obj[keyStandardID])
			codes[i] = FormatValue(obj[keyStandardCode])
		}
		row.SecondaryStandardIDs = strings.Join(ids, SecondarySeparator)
		row.SecondaryStandardCodes = strings.Join(codes, SecondarySeparator)
	}

	return row
}

// FlattenAll flattens records in order.
func FlattenAll(records []Record) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = Flatten(rec)
	}
	return rows
}

// asObject returns v as a map, or nil when v is anything else.
// Lookups on the nil map yield nil, which formats as an empty cell.
func asObject(v any) map[string]any {
	switch obj := v.(type) {
	case map[string]any:
		return obj
	case Record:
		return obj
	default:
		return nil
	}
}

// FormatValue renders a decoded JSON value as a CSV cell.
//
// Strings are copied verbatim and numbers keep their JSON text. Booleans
// become true/false, null becomes empty, and objects or arrays are written
// as compact JSON.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
