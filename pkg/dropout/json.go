package dropout

import (
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

const jsonNullType = fastjson.TypeNull

func parseJSON(body []byte) (*fastjson.Value, error) {
	return fastjson.ParseBytes(body)
}

func jsonString(v *fastjson.Value, keys ...string) string {
	return string(v.GetStringBytes(keys...))
}

// jsonNumber reads an integer that some payload shapes serialize as a JSON
// string instead of a number.
func jsonNumber(v *fastjson.Value, keys ...string) int64 {
	field := v.Get(keys...)
	if field == nil {
		return 0
	}
	switch field.Type() {
	case fastjson.TypeNumber:
		return field.GetInt64()
	case fastjson.TypeString:
		n, err := strconv.ParseInt(string(field.GetStringBytes()), 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func jsonStrings(v *fastjson.Value, keys ...string) []string {
	arr := v.GetArray(keys...)
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		out = append(out, string(item.GetStringBytes()))
	}
	return out
}

// parseTimestamp accepts both payload shapes: fractional-second dates from
// the full shape and whole-second dates from the embedded one.
func parseTimestamp(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
}

func parseReleaseDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}
