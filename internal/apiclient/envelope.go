package apiclient

import (
	"encoding/json"
	"fmt"
)

// ListOptions controls UnwrapList.
type ListOptions struct {
	// NestedKey selects payload.data[NestedKey] when it is an array.
	NestedKey string
}

// UnwrapData returns the payload's data member. When data is an object that
// itself carries an array-valued data member (a paginated page), the inner
// array is returned instead.
func UnwrapData(payload any) any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	data, ok := obj["data"]
	if !ok {
		return nil
	}
	if inner, ok := data.(map[string]any); ok {
		if items, ok := inner["data"].([]any); ok {
			return items
		}
	}
	return data
}

// UnwrapList returns the list carried by payload. The result is never nil.
func UnwrapList(payload any, opts ListOptions) []any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return []any{}
	}
	if opts.NestedKey != "" {
		if data, ok := obj["data"].(map[string]any); ok {
			if items, ok := data[opts.NestedKey].([]any); ok {
				return items
			}
		}
	}
	if items, ok := UnwrapData(obj).([]any); ok && items != nil {
		return items
	}
	return []any{}
}

// IsSuccess reports whether payload signals success, either with
// success=true or status="success".
func IsSuccess(payload any) bool {
	obj, ok := payload.(map[string]any)
	if !ok {
		return false
	}
	if b, ok := obj["success"].(bool); ok && b {
		return true
	}
	if s, ok := obj["status"].(string); ok && s == "success" {
		return true
	}
	return false
}

// UnwrapMessage returns payload.message when it is a non-empty string.
func UnwrapMessage(payload any, fallback string) string {
	obj, ok := payload.(map[string]any)
	if !ok {
		return fallback
	}
	if msg, ok := obj["message"].(string); ok && msg != "" {
		return msg
	}
	return fallback
}

// BodyKind discriminates the shape of an envelope's data member.
type BodyKind int

const (
	// KindEmpty means data was absent or null.
	KindEmpty BodyKind = iota
	// KindPlain means data is used as-is (object, array or scalar).
	KindPlain
	// KindPaginated means data was a page object wrapping an item array.
	KindPaginated
)

func (k BodyKind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindPaginated:
		return "paginated"
	default:
		return "empty"
	}
}

// Body is the decoded data member of an envelope.
type Body struct {
	Kind  BodyKind
	Value any
	Items []any
	Total int
	// Page holds the page object's remaining members (total, per_page, ...).
	Page map[string]any
}

// Envelope is a response decoded once at the client boundary.
type Envelope struct {
	Success bool
	Status  string
	Message string
	Errors  any
	Body    Body
	// Raw is the full decoded payload.
	Raw map[string]any
}

// DecodeEnvelope decodes a response body. A body that is not a JSON object
// is returned as a plain envelope whose value is the decoded JSON (or the raw
// text when it is not JSON at all).
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return &Envelope{Raw: map[string]any{}}, nil
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return &Envelope{
			Body: Body{Kind: KindPlain, Value: string(data)},
			Raw:  map[string]any{},
		}, nil
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		if decoded == nil {
			return &Envelope{Raw: map[string]any{}}, nil
		}
		return &Envelope{Body: Body{Kind: KindPlain, Value: decoded}, Raw: map[string]any{}}, nil
	}
	return FromPayload(obj), nil
}

// FromPayload classifies an already-decoded payload.
func FromPayload(obj map[string]any) *Envelope {
	env := &Envelope{
		Success: IsSuccess(obj),
		Message: UnwrapMessage(obj, ""),
		Errors:  obj["errors"],
		Raw:     obj,
	}
	if s, ok := obj["status"].(string); ok {
		env.Status = s
	}

	data, present := obj["data"]
	switch {
	case !present || data == nil:
		env.Body = Body{Kind: KindEmpty}
	default:
		if page, ok := data.(map[string]any); ok {
			if items, ok := page["data"].([]any); ok {
				rest := make(map[string]any, len(page))
				for k, v := range page {
					if k != "data" {
						rest[k] = v
					}
				}
				env.Body = Body{Kind: KindPaginated, Items: items, Total: intValue(page["total"], len(items)), Page: rest}
				return env
			}
		}
		env.Body = Body{Kind: KindPlain, Value: data}
	}
	return env
}

// Value mirrors UnwrapData on the decoded envelope.
func (e *Envelope) Value() any {
	switch e.Body.Kind {
	case KindPaginated:
		return e.Body.Items
	case KindPlain:
		return e.Body.Value
	default:
		return nil
	}
}

// Items mirrors UnwrapList on the decoded envelope. nestedKey may be empty.
func (e *Envelope) Items(nestedKey string) []any {
	if nestedKey != "" {
		var obj map[string]any
		switch e.Body.Kind {
		case KindPlain:
			obj, _ = e.Body.Value.(map[string]any)
		case KindPaginated:
			obj = e.Body.Page
		}
		if items, ok := obj[nestedKey].([]any); ok {
			return items
		}
	}
	switch e.Body.Kind {
	case KindPaginated:
		return e.Body.Items
	case KindPlain:
		if items, ok := e.Body.Value.([]any); ok {
			return items
		}
	}
	return []any{}
}

// DecodeValue converts the envelope's value into out.
func DecodeValue[T any](e *Envelope) (T, error) {
	var out T
	if err := remarshal(e.Value(), &out); err != nil {
		return out, fmt.Errorf("decode response data: %w", err)
	}
	return out, nil
}

// DecodeList converts the envelope's items into a typed slice.
func DecodeList[T any](e *Envelope, nestedKey string) ([]T, error) {
	out := []T{}
	if err := remarshal(e.Items(nestedKey), &out); err != nil {
		return nil, fmt.Errorf("decode response list: %w", err)
	}
	return out, nil
}

func remarshal(in any, out any) error {
	if in == nil {
		return nil
	}
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func intValue(v any, fallback int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return fallback
}
