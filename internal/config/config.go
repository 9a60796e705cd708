// Package config loads and validates strategy documents.
//
// A document is YAML or JSON. Every node carries its kind-specific settings in
// params, which are decoded into the typed structs of params.go on demand.
package config

import (
	"bytes"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-graph/internal/types"
	"github.com/rxtech-lab/argo-graph/internal/version"
	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// NodeType is the kind of a node in a strategy document.
type NodeType string

const (
	NodeTypeStart        NodeType = "start"
	NodeTypeKline        NodeType = "kline"
	NodeTypeIndicator    NodeType = "indicator"
	NodeTypeIfElse       NodeType = "if_else"
	NodeTypeVariable     NodeType = "variable"
	NodeTypeFuturesOrder NodeType = "futures_order"
	NodeTypePosition     NodeType = "position"
	NodeTypeOutput       NodeType = "output"
)

// AllNodeTypes lists every supported node type.
var AllNodeTypes = []any{
	NodeTypeStart,
	NodeTypeKline,
	NodeTypeIndicator,
	NodeTypeIfElse,
	NodeTypeVariable,
	NodeTypeFuturesOrder,
	NodeTypePosition,
	NodeTypeOutput,
}

// StrategyConfig is a strategy document.
type StrategyConfig struct {
	ID            types.StrategyID       `yaml:"id" json:"id" jsonschema:"title=ID,description=Unique strategy identifier,required" validate:"required"`
	Name          string                 `yaml:"name" json:"name" jsonschema:"title=Name,description=Human readable strategy name" validate:"required"`
	EngineVersion string                 `yaml:"engine_version" json:"engine_version" jsonschema:"title=Engine Version,description=Engine version the strategy was written for (semver or main),required" validate:"required"`
	Nodes         []NodeConfig           `yaml:"nodes" json:"nodes" jsonschema:"title=Nodes,required,minItems=1" validate:"required,min=1,dive"`
	Edges         []EdgeConfig           `yaml:"edges" json:"edges" jsonschema:"title=Edges" validate:"dive"`
	Variables     []types.CustomVariable `yaml:"variables,omitempty" json:"variables,omitempty" jsonschema:"title=Custom Variables" validate:"dive"`
}

// NodeConfig declares one node.
type NodeConfig struct {
	ID     types.NodeID   `yaml:"id" json:"id" jsonschema:"title=ID,required" validate:"required"`
	Name   string         `yaml:"name" json:"name" jsonschema:"title=Name"`
	Type   NodeType       `yaml:"type" json:"type" jsonschema:"title=Type,required" validate:"required"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty" jsonschema:"title=Params,description=Node type specific settings"`
}

// EdgeConfig connects an output handle of one node to another node.
// An empty SourceHandle means the source's default handle.
type EdgeConfig struct {
	Source       types.NodeID `yaml:"source" json:"source" jsonschema:"title=Source Node,required" validate:"required"`
	SourceHandle string       `yaml:"source_handle,omitempty" json:"source_handle,omitempty" jsonschema:"title=Source Handle"`
	Target       types.NodeID `yaml:"target" json:"target" jsonschema:"title=Target Node,required" validate:"required"`
}

// Load reads and validates a strategy document from path.
func Load(path string) (*StrategyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeConfigParseFailed, err, "failed to read %s", path)
	}

	return Parse(data)
}

// Parse decodes and validates a strategy document. JSON documents are
// accepted since they are valid YAML.
func Parse(data []byte) (*StrategyConfig, error) {
	var cfg StrategyConfig

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigParseFailed, "failed to decode strategy document", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the document structure and every node's params. Graph
// level checks (dangling edges, duplicates, cycles) happen when the graph is
// built.
func (c *StrategyConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid strategy document", err)
	}

	for _, n := range c.Nodes {
		if _, err := n.DecodeParams(); err != nil {
			return err
		}
	}

	return nil
}

// CheckEngineVersion checks the document against the running engine.
func (c *StrategyConfig) CheckEngineVersion() error {
	return version.CheckVersionCompatibility(version.GetVersion(), c.EngineVersion)
}

// Node returns the node with the given id.
func (c *StrategyConfig) Node(id types.NodeID) (NodeConfig, bool) {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n, true
		}
	}

	return NodeConfig{}, false
}

// DisplayName returns the node name, falling back to its id.
func (n NodeConfig) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}

	return string(n.ID)
}

// DecodeParams decodes and validates the params for the node's type. The
// result is one of the *Params structs of this package.
func (n NodeConfig) DecodeParams() (Params, error) {
	params, err := n.emptyParams()
	if err != nil {
		return nil, err
	}

	if err := decodeInto(n.Params, params); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeConfigParseFailed, err, "node %s: invalid params", n.ID)
	}

	params.applyDefaults()

	validate := validator.New()
	if err := validate.Struct(params); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "node %s: invalid params", n.ID)
	}

	if err := params.check(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "node %s: invalid params", n.ID)
	}

	return params, nil
}

// decodeInto round-trips raw through YAML so that the yaml tags and custom
// unmarshalers of out apply. Unknown fields are rejected.
func decodeInto(raw map[string]any, out any) error {
	if len(raw) == 0 {
		return nil
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	return decoder.Decode(out)
}
