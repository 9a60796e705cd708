package statemachine

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

type lightState string

type lightTrigger string

func (t lightTrigger) String() string { return string(t) }

const (
	lightOff lightState = "Off"
	lightOn  lightState = "On"
)

func lightTable(state lightState, trigger lightTrigger) (Result[lightState, string], error) {
	switch {
	case state == lightOff && trigger == "toggle":
		return Result[lightState, string]{NewState: lightOn, Actions: []string{"log", "power_on"}}, nil
	case state == lightOn && trigger == "toggle":
		return Result[lightState, string]{NewState: lightOff, Actions: []string{"power_off", "log"}}, nil
	default:
		return Result[lightState, string]{}, Invalid("light", state, trigger)
	}
}

type MachineTestSuite struct {
	suite.Suite
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineTestSuite))
}

func (suite *MachineTestSuite) TestTransitionMovesStateAndKeepsActionOrder() {
	m := New("light", lightOff, lightTable)
	suite.Equal("light", m.Name())

	result, err := m.Transition("toggle")
	suite.NoError(err)
	suite.Equal(lightOn, result.NewState)
	suite.Equal([]string{"log", "power_on"}, result.Actions)
	suite.Equal(lightOn, m.Current())

	result, err = m.Transition("toggle")
	suite.NoError(err)
	suite.Equal([]string{"power_off", "log"}, result.Actions)
}

func (suite *MachineTestSuite) TestInvalidTransitionLeavesStateUntouched() {
	m := New("light", lightOff, lightTable)

	_, err := m.Transition("explode")
	suite.Error(err)
	suite.True(errors.IsInvalidStateTransition(err))

	var transitionErr *errors.InvalidStateTransitionError
	suite.True(errors.As(err, &transitionErr))
	suite.Equal("light", transitionErr.Machine)
	suite.Equal("Off", transitionErr.State)
	suite.Equal("explode", transitionErr.Trigger)
	suite.Equal(lightOff, m.Current())
}

func (suite *MachineTestSuite) TestMetadataIsCopied() {
	m := New("light", lightOff, lightTable)
	m.SetMetadata("node_id", "n1")

	md := m.Metadata()
	md["node_id"] = "changed"
	suite.Equal("n1", m.Metadata()["node_id"])
}
