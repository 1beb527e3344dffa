package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodec_RoundTrip(t *testing.T) {
	var codec jsonCodec

	original := &RequestVoteRequest{Term: 7, CandidateID: "X:3000;3777", LastLogIndex: 42}
	data, err := codec.Marshal(original)
	require.NoError(t, err)

	var decoded RequestVoteRequest
	require.NoError(t, codec.Unmarshal(data, &decoded))
	assert.Equal(t, *original, decoded)
}

func TestJSONCodec_RegisteredUnderProtoName(t *testing.T) {
	assert.Equal(t, "proto", (jsonCodec{}).Name())
}
