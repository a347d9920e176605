package main

import "strings"

// parseSetValue interprets SET's value argument. A bracketed literal
// ("[a, b, c]") becomes a List, a braced literal ("{k: v, k2: v2}")
// becomes a Hash; anything else is stored verbatim as a String. This
// is the one place the wire protocol can produce a non-string
// DataType, mirroring the literal-syntax SET the original calod REPL
// accepted.
func parseSetValue(raw string) StoredValue {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		return parseListLiteral(trimmed[1 : len(trimmed)-1])
	}
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return parseHashLiteral(trimmed[1 : len(trimmed)-1])
	}
	return StringValue(raw)
}

func parseListLiteral(body string) StoredValue {
	l := NewList()
	if strings.TrimSpace(body) == "" {
		return StoredValue{Tag: TypeList, List: l}
	}
	for _, item := range strings.Split(body, ",") {
		l.RightPush(strings.TrimSpace(item))
	}
	return StoredValue{Tag: TypeList, List: l}
}

func parseHashLiteral(body string) StoredValue {
	h := NewHash()
	if strings.TrimSpace(body) == "" {
		return StoredValue{Tag: TypeHash, Hash: h}
	}
	for _, pair := range strings.Split(body, ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			continue
		}
		h.Set(strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1]))
	}
	return StoredValue{Tag: TypeHash, Hash: h}
}

// storedValueToFrame encodes a retrieved value as the RESP reply GET
// sends back. Strings are bulk strings; Lists, Sets, and Hashes become
// Arrays (a Hash flattens to alternating field/value bulk strings).
func storedValueToFrame(v StoredValue) RESPFrame {
	switch v.Tag {
	case TypeList:
		items := v.List.Values()
		elems := make([]RESPFrame, len(items))
		for i, item := range items {
			elems[i] = BulkStringFrame([]byte(item))
		}
		return ArrayFrame(elems)
	case TypeSet:
		members := v.Set.Members()
		elems := make([]RESPFrame, len(members))
		for i, m := range members {
			elems[i] = BulkStringFrame([]byte(m))
		}
		return ArrayFrame(elems)
	case TypeHash:
		fields := v.Hash.GetAll()
		elems := make([]RESPFrame, 0, len(fields)*2)
		for field, val := range fields {
			elems = append(elems, BulkStringFrame([]byte(field)), BulkStringFrame([]byte(val)))
		}
		return ArrayFrame(elems)
	default:
		return BulkStringFrame([]byte(v.String))
	}
}
