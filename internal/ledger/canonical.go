// Package ledger implements a tamper-evident, per-tenant audit ledger:
// entries are hash-chained in strict sequence order, HMAC-sealed, summarized
// by periodic Merkle checkpoints, and verifiable/exportable without write
// access. All digests commit to the canonical byte encoding produced here,
// so any change to this encoding invalidates every stored hash.
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/caretrail/caretrail/internal/domain"
)

// canonicalTimeLayout pins timestamps to UTC with microsecond precision,
// matching the precision of the storage backend so a persisted timestamp
// round-trips to identical bytes.
const canonicalTimeLayout = "2006-01-02T15:04:05.000000Z"

// Canonicalize renders v as canonical JSON: object keys sorted bytewise,
// "," and ":" as the only separators, no whitespace, UTF-8 output with only
// the JSON-mandated escapes. Fields set to nil encode as null rather than
// being omitted. Identical logical content always yields identical bytes.
func Canonicalize(v any) ([]byte, error) {
	buf, err := appendCanonical(make([]byte, 0, 256), v)
	if err != nil {
		return nil, fmt.Errorf("ledger.Canonicalize: %w", err)
	}
	return buf, nil
}

func appendCanonical(buf []byte, v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return append(buf, "null"...), nil
	case string:
		return appendCanonicalString(buf, t), nil
	case *string:
		if t == nil {
			return append(buf, "null"...), nil
		}
		return appendCanonicalString(buf, *t), nil
	case bool:
		if t {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case int:
		return strconv.AppendInt(buf, int64(t), 10), nil
	case int32:
		return strconv.AppendInt(buf, int64(t), 10), nil
	case int64:
		return strconv.AppendInt(buf, t, 10), nil
	case json.Number:
		return append(buf, t...), nil
	case float64:
		return appendCanonicalFloat(buf, t)
	case float32:
		return appendCanonicalFloat(buf, float64(t))
	case time.Time:
		return appendCanonicalString(buf, t.UTC().Truncate(time.Microsecond).Format(canonicalTimeLayout)), nil
	case uuid.UUID:
		return appendCanonicalString(buf, t.String()), nil
	case map[string]any:
		return appendCanonicalObject(buf, t)
	case []any:
		return appendCanonicalArray(buf, t)
	case []string:
		arr := make([]any, len(t))
		for i, s := range t {
			arr[i] = s
		}
		return appendCanonicalArray(buf, arr)
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

func appendCanonicalObject(buf []byte, obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendCanonicalString(buf, k)
		buf = append(buf, ':')

		var err error
		buf, err = appendCanonical(buf, obj[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
	}
	return append(buf, '}'), nil
}

func appendCanonicalArray(buf []byte, arr []any) ([]byte, error) {
	buf = append(buf, '[')
	for i, v := range arr {
		if i > 0 {
			buf = append(buf, ',')
		}

		var err error
		buf, err = appendCanonical(buf, v)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
	}
	return append(buf, ']'), nil
}

// appendCanonicalFloat uses the shortest round-trip decimal form. NaN and
// infinities have no JSON encoding and are rejected so a bad value cannot
// silently produce an unhashable or ambiguous byte stream.
func appendCanonicalFloat(buf []byte, f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v", f)
	}
	return strconv.AppendFloat(buf, f, 'g', -1, 64), nil
}

// appendCanonicalString escapes only what JSON requires: quote, backslash,
// and control characters below 0x20. Non-ASCII passes through as UTF-8 so
// the encoding matches the original wire format byte for byte.
func appendCanonicalString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for _, b := range []byte(s) {
		switch {
		case b == '"':
			buf = append(buf, '\\', '"')
		case b == '\\':
			buf = append(buf, '\\', '\\')
		case b == '\n':
			buf = append(buf, '\\', 'n')
		case b == '\r':
			buf = append(buf, '\\', 'r')
		case b == '\t':
			buf = append(buf, '\\', 't')
		case b == '\b':
			buf = append(buf, '\\', 'b')
		case b == '\f':
			buf = append(buf, '\\', 'f')
		case b < 0x20:
			buf = append(buf, fmt.Sprintf(`\u%04x`, b)...)
		default:
			buf = append(buf, b)
		}
	}
	return append(buf, '"')
}

// normalizeDetails reduces a details map to the JSON type set (string,
// json.Number, bool, nil, object, array) by round-tripping it through its
// JSON encoding. Canonical bytes must not depend on whether the map was
// built in-process (typed ints, floats) or decoded from the details column
// at read time; json.Number keeps every numeric literal exact either way.
func normalizeDetails(details map[string]any) (map[string]any, error) {
	if len(details) == 0 {
		return map[string]any{}, nil
	}

	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	normalized := make(map[string]any, len(details))
	if err := dec.Decode(&normalized); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return normalized, nil
}

// entryContent assembles the signable content of an entry: every field that
// the hash commits to, computed fields (EntryHash, Signature) excluded.
// Optional fields are present as explicit nulls so omission and null can
// never be conflated; a nil Details map canonicalizes as an empty object.
func entryContent(e *domain.AuditEntry) (map[string]any, error) {
	details, err := normalizeDetails(e.Details)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"id":        e.ID,
		"tenantId":  e.TenantID,
		"sequence":  e.Sequence,
		"timestamp": e.Timestamp,
		"actor":     e.Actor,
		"action":    e.Action,
		"entity":    e.Entity,
		"entityId":  e.EntityID,
		"details":   details,
		"requestId": e.RequestID,
		"ipAddress": e.IPAddress,
		"userAgent": e.UserAgent,
		"prevHash":  e.PrevHash,
	}, nil
}

// checkpointContent assembles the signable content of a checkpoint.
func checkpointContent(cp *domain.Checkpoint) map[string]any {
	return map[string]any{
		"tenantId":     cp.TenantID,
		"fromSequence": cp.FromSequence,
		"toSequence":   cp.ToSequence,
		"entryCount":   cp.EntryCount,
		"merkleRoot":   cp.MerkleRoot,
		"timestamp":    cp.Timestamp,
	}
}

// exportBoundary assembles the signable boundary metadata of an export.
func exportBoundary(pkg *domain.ExportPackage) map[string]any {
	return map[string]any{
		"tenantId":     pkg.TenantID,
		"fromSequence": pkg.FromSequence,
		"toSequence":   pkg.ToSequence,
		"entryCount":   pkg.EntryCount,
	}
}
