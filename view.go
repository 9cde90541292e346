package omnibus

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned by ParseView when the input is not valid JSON.
var ErrInvalidJSON = errors.New("omnibus: invalid JSON")

// View is read-only, path-based access to a payload. Discriminators match
// against a View and tools use one to project payload fields. Paths use
// gjson syntax, so "data.sensor1.0" is the first sample of sensor1.
type View interface {
	// HasField reports whether path exists, including when it holds null.
	HasField(path string) bool

	// GetString returns the string at path. It returns false when path is
	// missing or holds another type.
	GetString(path string) (string, bool)

	// GetText returns any value at path as text: strings unquoted, scalars
	// as written, objects and arrays as raw JSON.
	GetText(path string) (string, bool)

	// GetBytes returns the raw JSON at path.
	GetBytes(path string) ([]byte, bool)
}

// ParseView returns a View over a JSON document.
func ParseView(raw []byte) (View, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	return payloadView(raw), nil
}

// PayloadView returns a View over the JSON form of a decoded payload, typed
// or raw. Casing is left as it is.
func PayloadView(payload any) (View, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("omnibus: view payload: %w", err)
	}
	return payloadView(raw), nil
}

type payloadView []byte

func (v payloadView) lookup(path string) (gjson.Result, bool) {
	r := gjson.GetBytes(v, path)
	return r, r.Exists()
}

func (v payloadView) HasField(path string) bool {
	_, ok := v.lookup(path)
	return ok
}

func (v payloadView) GetString(path string) (string, bool) {
	r, ok := v.lookup(path)
	if !ok || r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}

func (v payloadView) GetText(path string) (string, bool) {
	r, ok := v.lookup(path)
	switch {
	case !ok:
		return "", false
	case r.Type == gjson.String:
		return r.Str, true
	default:
		return r.Raw, true
	}
}

func (v payloadView) GetBytes(path string) ([]byte, bool) {
	r, ok := v.lookup(path)
	if !ok {
		return nil, false
	}
	return []byte(r.Raw), true
}
