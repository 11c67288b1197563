package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwars/duel-backend/internal/engine"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env := CommandEnvelope{
		Seq: 7,
		Command: engine.Command{
			Type:     engine.CmdPlaceTower,
			PlayerID: "alice",
			PlaceTower: &engine.PlaceTowerData{
				TowerType: engine.TowerPhysics, X: 3, Y: 9,
			},
		},
	}

	data, err := Encode(TypeCommand, env, "alice")
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeCommand, msg.Type)
	assert.Equal(t, "alice", msg.SenderID)

	got, err := DecodePayload[CommandEnvelope](msg)
	require.NoError(t, err)
	assert.Equal(t, env.Seq, got.Seq)
	assert.Equal(t, env.Command.Type, got.Command.Type)
	require.NotNil(t, got.Command.PlaceTower)
	assert.Equal(t, *env.Command.PlaceTower, *got.Command.PlaceTower)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"Teleport"}`))
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	var perr *Error
	require.ErrorAs(t, err, &perr)
}

func TestDecodePayloadEmpty(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"Command"}`))
	require.NoError(t, err)
	_, err = DecodePayload[CommandEnvelope](msg)
	require.Error(t, err)
}

func TestCommandPayloadIsTagged(t *testing.T) {
	// Exactly the payload field matching the command type travels; every
	// other pointer stays nil after a round trip.
	env := CommandEnvelope{
		Seq: 1,
		Command: engine.Command{
			Type:     engine.CmdResearch,
			PlayerID: "bob",
			Research: &engine.ResearchData{ResearchType: engine.ResearchLagrange},
		},
	}
	data, err := Encode(TypeCommand, env, "bob")
	require.NoError(t, err)
	msg, err := Decode(data)
	require.NoError(t, err)
	got, err := DecodePayload[CommandEnvelope](msg)
	require.NoError(t, err)

	assert.NotNil(t, got.Command.Research)
	assert.Nil(t, got.Command.PlaceTower)
	assert.Nil(t, got.Command.ModifyPoint)
	assert.Nil(t, got.Command.SendMercenary)
	assert.Nil(t, got.Command.SetInterpolation)
	assert.Nil(t, got.Command.Ready)
}
