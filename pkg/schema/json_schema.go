// Package schema renders JSON schemas for strategy documents.
package schema

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
)

var optionalTimeType = reflect.TypeOf(optional.Option[time.Time]{})

// NewReflector returns the reflector used for every strategy schema. Struct
// types are inlined and optional timestamps render as date-time strings.
func NewReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
		ExpandedStruct:             true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == optionalTimeType {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			return nil
		},
	}
}

// ToJSONSchema converts a struct to a JSON schema
func ToJSONSchema[T any](t T) (string, error) {
	return Marshal(NewReflector().Reflect(t), false)
}

// ToIndentedJSONSchema is ToJSONSchema with two-space indentation.
func ToIndentedJSONSchema[T any](t T) (string, error) {
	return Marshal(NewReflector().Reflect(t), true)
}

// Marshal renders a schema as JSON.
func Marshal(s *jsonschema.Schema, indent bool) (string, error) {
	var (
		data []byte
		err  error
	)

	if indent {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = json.Marshal(s)
	}

	if err != nil {
		return "", err
	}

	return string(data), nil
}
