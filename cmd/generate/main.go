package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-graph/internal/config"
	"github.com/rxtech-lab/argo-graph/internal/handle"
	"github.com/rxtech-lab/argo-graph/internal/version"
)

const (
	schemaName       = "strategy-schema.json"
	sampleConfigName = "sample-strategy.yaml"
)

// sampleStrategy buys 0.01 BTC on every bar where the 20 bar moving average
// is above 42000.
func sampleStrategy() *config.StrategyConfig {
	return &config.StrategyConfig{
		ID:            "sample",
		Name:          "SMA breakout",
		EngineVersion: version.GetVersion(),
		Nodes: []config.NodeConfig{
			{
				ID:     "start",
				Name:   "Start",
				Type:   config.NodeTypeStart,
				Params: map[string]any{"initial_balance": 10000, "leverage": 1, "fee_rate": 0.0004, "play_speed": 0},
			},
			{
				ID:   "kline",
				Name: "BTC 1m",
				Type: config.NodeTypeKline,
				Params: map[string]any{
					"exchange":   "binance",
					"symbols":    []any{map[string]any{"config_id": 0, "symbol": "BTCUSDT", "interval": "1m"}},
					"start_time": "2024-01-01T00:00:00Z",
					"end_time":   "2024-01-02T00:00:00Z",
				},
			},
			{
				ID:   "sma",
				Name: "SMA 20",
				Type: config.NodeTypeIndicator,
				Params: map[string]any{
					"source":     map[string]any{"exchange": "binance", "symbol": "BTCUSDT", "interval": "1m"},
					"indicators": []any{map[string]any{"config_id": 0, "config": map[string]any{"type": "ma", "period": 20}}},
				},
			},
			{
				ID:   "above",
				Name: "SMA above 42000",
				Type: config.NodeTypeIfElse,
				Params: map[string]any{
					"cases": []any{map[string]any{
						"case_id": 1,
						"conditions": []any{map[string]any{
							"left":  map[string]any{"type": "variable", "node_id": "sma", "config_id": 0},
							"op":    "gt",
							"right": map[string]any{"type": "constant", "value": 42000},
						}},
					}},
				},
			},
			{
				ID:   "buy",
				Name: "Buy",
				Type: config.NodeTypeFuturesOrder,
				Params: map[string]any{
					"orders": []any{map[string]any{
						"config_id": 0, "exchange": "binance", "symbol": "BTCUSDT", "side": "BUY", "order_type": "MARKET", "quantity": 0.01,
					}},
				},
			},
			{ID: "done", Name: "Done", Type: config.NodeTypeOutput, Params: nil},
		},
		Edges: []config.EdgeConfig{
			{Source: "start", SourceHandle: "", Target: "kline"},
			{Source: "kline", SourceHandle: "", Target: "sma"},
			{Source: "sma", SourceHandle: "", Target: "above"},
			{Source: "above", SourceHandle: handle.ConfigHandleID("above", 1), Target: "buy"},
			{Source: "above", SourceHandle: handle.ElseHandleID("above"), Target: "done"},
		},
		Variables: nil,
	}
}

// validatePaths checks that both output paths are set.
func validatePaths(schemaPath, sampleConfigPath string) error {
	if schemaPath == "" {
		return fmt.Errorf("schema path cannot be empty")
	}

	if sampleConfigPath == "" {
		return fmt.Errorf("sample config path cannot be empty")
	}

	return nil
}

// validateSchemaName checks the schema file name referenced by the sample.
func validateSchemaName(name string) error {
	if name == "" {
		return fmt.Errorf("schema name cannot be empty")
	}

	if !strings.HasSuffix(name, ".json") {
		return fmt.Errorf("schema name %q must have .json extension", name)
	}

	return nil
}

// getSchemaReference returns the yaml-language-server header of a sample document.
func getSchemaReference(name string) string {
	return "# yaml-language-server: $schema=" + name + "\n"
}

// generateSchemaFile writes the strategy document schema to path.
func generateSchemaFile(path string) error {
	schemaJSON, err := config.GetConfigSchema()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(schemaJSON), 0o644); err != nil {
		return fmt.Errorf("failed to write schema to file: %w", err)
	}

	return nil
}

// generateSampleConfig writes cfg to path unless the file already exists.
func generateSampleConfig(cfg *config.StrategyConfig, path, schema string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal sample config to yaml: %w", err)
	}

	yamlBytes = append([]byte(getSchemaReference(schema)), yamlBytes...)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, yamlBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write sample config to file: %w", err)
	}

	return nil
}

func main() {
	schemaPath := filepath.Join("./config", schemaName)
	sampleConfigPath := filepath.Join("./config", sampleConfigName)

	if err := validatePaths(schemaPath, sampleConfigPath); err != nil {
		log.Fatal(err)
	}

	if err := validateSchemaName(schemaName); err != nil {
		log.Fatal(err)
	}

	if err := generateSchemaFile(schemaPath); err != nil {
		log.Fatal(err)
	}

	if err := generateSampleConfig(sampleStrategy(), sampleConfigPath, schemaName); err != nil {
		log.Fatal(err)
	}

	log.Printf("Schema successfully generated at %s", schemaPath)
}
