package schema

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type JsonSchemaTestSuite struct {
	suite.Suite
}

func TestJsonSchemaTestSuite(t *testing.T) {
	suite.Run(t, new(JsonSchemaTestSuite))
}

type testParams struct {
	Period int    `json:"period" jsonschema:"title=Period,description=Lookback window,minimum=1,default=20"`
	Symbol string `json:"symbol" jsonschema:"title=Symbol,description=The symbol to trade,default=BTCUSDT"`
}

func (suite *JsonSchemaTestSuite) TestToJSONSchema() {
	schema, err := ToJSONSchema(testParams{})
	suite.NoError(err)
	suite.NotEmpty(schema)
	suite.False(strings.Contains(schema, "\n"))

	var decoded map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(schema), &decoded))

	properties, ok := decoded["properties"].(map[string]any)
	suite.Require().True(ok)
	suite.Contains(properties, "period")
	suite.Contains(properties, "symbol")

	period, ok := properties["period"].(map[string]any)
	suite.Require().True(ok)
	suite.Equal("Period", period["title"])
	suite.EqualValues(1, period["minimum"])
}

func (suite *JsonSchemaTestSuite) TestIndented() {
	schema, err := ToIndentedJSONSchema(testParams{})
	suite.NoError(err)
	suite.True(strings.Contains(schema, "\n  "))
}

func (suite *JsonSchemaTestSuite) TestOptionalTimeIsDateTime() {
	type window struct {
		End optional.Option[time.Time] `json:"end"`
	}

	schema, err := ToJSONSchema(window{})
	suite.NoError(err)

	var decoded map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(schema), &decoded))

	end := decoded["properties"].(map[string]any)["end"].(map[string]any)
	suite.Equal("string", end["type"])
	suite.Equal("date-time", end["format"])
}
