package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/Subconscious-ai/ghostshell/pkg/apierror"
)

// Args are the decoded JSON arguments of a tool call.
type Args map[string]any

// ParseArgs decodes raw tool arguments. Empty input and JSON null yield
// empty Args; anything other than a JSON object is a validation error.
func ParseArgs(raw []byte) (Args, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Args{}, nil
	}

	var a Args
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, apierror.New(apierror.Validation, "arguments must be a JSON object")
	}
	if a == nil {
		a = Args{}
	}
	return a, nil
}

// Decode copies the arguments into the struct pointed to by dst, matching
// fields by their json tags. A value of the wrong type is a validation
// error.
func (a Args) Decode(dst any) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return apierror.Newf(apierror.Validation, "invalid arguments: %v", err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			return apierror.Newf(apierror.Validation, "invalid argument %s: expected %s, got %s", te.Field, te.Type, te.Value)
		}
		return apierror.Newf(apierror.Validation, "invalid arguments: %v", err)
	}
	return nil
}

// text is a string argument that also accepts a JSON number, for fields
// like year that clients send either way.
type text string

var stringType = reflect.TypeOf("")

func (t *text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = text(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return &json.UnmarshalTypeError{Value: string(b), Type: stringType}
	}
	*t = text(n.String())
	return nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return apierror.Newf(apierror.Validation, "%s is required", name)
	}
	return nil
}

// intIn resolves an optional integer argument against its default and
// bounds.
func intIn(name string, v *int, def, lo, hi int) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v < lo || *v > hi {
		return 0, apierror.New(apierror.Validation,
			name+" must be between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi))
	}
	return *v, nil
}

func oneOf(name, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return apierror.Newf(apierror.Validation, "%s must be one of %s", name, strings.Join(allowed, ", "))
}
