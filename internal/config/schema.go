package config

import (
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/rxtech-lab/argo-graph/internal/version"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
	"github.com/rxtech-lab/argo-graph/pkg/schema"
)

var nodeTypeType = reflect.TypeOf(NodeType(""))

func reflector() *jsonschema.Reflector {
	r := schema.NewReflector()
	base := r.Mapper
	r.Mapper = func(t reflect.Type) *jsonschema.Schema {
		if t == nodeTypeType {
			return &jsonschema.Schema{
				Type: "string",
				Enum: AllNodeTypes,
			}
		}

		return base(t)
	}

	return r
}

// GetConfigSchema returns the JSON schema of a strategy document.
func GetConfigSchema() (string, error) {
	s := reflector().Reflect(&StrategyConfig{}) //nolint:exhaustruct // reflected only
	s.Title = "argo-graph-strategy"
	s.Description = "Strategy document for engine " + version.GetVersion()
	s.Version = "http://json-schema.org/draft-07/schema#"

	return schema.Marshal(s, true)
}

// GetParamsSchema returns the JSON schema of the params of one node type.
func GetParamsSchema(t NodeType) (string, error) {
	params, err := NodeConfig{Type: t, ID: "schema", Name: "", Params: nil}.emptyParams()
	if err != nil {
		return "", err
	}

	s := reflector().Reflect(params)
	s.Title = string(t) + "-params"

	return schema.Marshal(s, true)
}

func (n NodeConfig) emptyParams() (Params, error) {
	switch n.Type {
	case NodeTypeStart:
		return &StartParams{}, nil //nolint:exhaustruct // reflected only
	case NodeTypeKline:
		return &KlineParams{}, nil //nolint:exhaustruct // reflected only
	case NodeTypeIndicator:
		return &IndicatorParams{}, nil //nolint:exhaustruct // reflected only
	case NodeTypeIfElse:
		return &IfElseParams{}, nil //nolint:exhaustruct // reflected only
	case NodeTypeVariable:
		return &VariableParams{}, nil //nolint:exhaustruct // reflected only
	case NodeTypeFuturesOrder:
		return &FuturesOrderParams{}, nil //nolint:exhaustruct // reflected only
	case NodeTypePosition:
		return &PositionParams{}, nil //nolint:exhaustruct // reflected only
	case NodeTypeOutput:
		return &OutputParams{}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedNodeType, "node %s has unsupported type %q", n.ID, n.Type)
	}
}
