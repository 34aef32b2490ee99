package auth

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// FieldHash carries the claimed signature, it never takes part in the check string
	FieldHash = "hash"
	// FieldUser carries the JSON encoded user object
	FieldUser = "user"
	// FieldAuthDate carries the unix timestamp of the payload
	FieldAuthDate = "auth_date"
)

// InitData is the parsed form of the mini-app launch payload.
type InitData struct {
	Raw    string
	Hash   string
	Fields map[string]string
}

// ParseInitData decodes a query string shaped payload. Duplicate keys
// resolve to the last occurrence. The hash field is removed from Fields.
func ParseInitData(raw string) (*InitData, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}

	fields := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) == 0 {
			continue
		}
		fields[k] = v[len(v)-1]
	}

	hash, ok := fields[FieldHash]
	if !ok || hash == "" {
		return nil, fmt.Errorf("%w: missing %s field", ErrMalformedPayload, FieldHash)
	}
	delete(fields, FieldHash)

	return &InitData{
		Raw:    raw,
		Hash:   hash,
		Fields: fields,
	}, nil
}

// DataCheckString returns the newline joined, key sorted key=value list
// used as the HMAC message.
func (d *InitData) DataCheckString() string {
	return DataCheckString(d.Fields)
}

// DataCheckString builds the canonical string for an arbitrary field set.
// A hash entry, if present, is skipped.
func DataCheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == FieldHash {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

// Get returns a field value
func (d *InitData) Get(key string) (string, bool) {
	v, ok := d.Fields[key]
	return v, ok
}

// AuthDate returns the auth_date field as time. ok is false when the field
// is absent or not a unix timestamp.
func (d *InitData) AuthDate() (time.Time, bool) {
	raw, ok := d.Fields[FieldAuthDate]
	if !ok {
		return time.Time{}, false
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(ts, 0), true
}
