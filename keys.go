package apicache

import (
	"sort"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/apicache/internal/util"
)

// Params are the named arguments of a wrapped operation.
type Params map[string]any

// EndpointID identifies one wrapped operation for metrics bucketing and
// per-endpoint TTL resolution.
func EndpointID(domain, operation string) string {
	return domain + ":" + operation
}

// BuildKey derives the cache key for one call:
//
//	domain:operation:name=value,...
//
// Parameter names are sorted, so ordering never changes the key. Bytes that
// are structural in keys and patterns are percent-encoded inside names and
// string values, so no value can collide with another parameter set. An
// explicit nil renders as "%null" and stays distinguishable from an absent
// parameter (which is omitted entirely) and from the string "null".
// Non-scalar values are hashed to a short fingerprint so key length stays
// bounded regardless of parameter shape.
func BuildKey(domain, operation string, params Params) string {
	base := domain + ":" + operation
	if len(params) == 0 {
		return base
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteByte(':')
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(escapeKeyPart(name))
		sb.WriteByte('=')
		sb.WriteString(renderParam(params[name]))
	}
	return sb.String()
}

func renderParam(v any) string {
	switch t := v.(type) {
	case nil:
		// A raw '%' never survives escaping, so no string can forge this.
		return "%null"
	case string:
		return escapeKeyPart(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case int8, int16, int32, uint, uint8, uint16, uint32:
		return intString(t)
	default:
		return "#" + util.Fingerprint(v)
	}
}

func intString(v any) string {
	switch t := v.(type) {
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	}
	return ""
}

// keyEscapes are the bytes with structural meaning in keys and invalidation
// patterns, plus '%' itself so escaping stays reversible.
const keyEscapes = "%=,:*"

const hexUpper = "0123456789ABCDEF"

// escapeKeyPart percent-encodes structural bytes inside a parameter name or
// rendered value. Ordinary values pass through untouched and keys stay
// readable.
func escapeKeyPart(s string) string {
	if !strings.ContainsAny(s, keyEscapes) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(keyEscapes, c) >= 0 {
			sb.WriteByte('%')
			sb.WriteByte(hexUpper[c>>4])
			sb.WriteByte(hexUpper[c&0x0F])
		} else {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// filterParams applies the decorator's allow/deny lists. Include wins when
// both are present.
func filterParams(params Params, include, exclude []string) Params {
	if len(include) == 0 && len(exclude) == 0 {
		return params
	}
	out := make(Params, len(params))
	if len(include) > 0 {
		for _, name := range include {
			if v, ok := params[name]; ok {
				out[name] = v
			}
		}
		return out
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}
	for name, v := range params {
		if _, ok := skip[name]; !ok {
			out[name] = v
		}
	}
	return out
}
