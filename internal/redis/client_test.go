package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRejectsMalformedURL(t *testing.T) {
	client, err := NewClient("localhost:6379")
	require.Error(t, err)
	assert.Nil(t, client)
}

func TestNewClientParsesStandardURL(t *testing.T) {
	client, err := NewClient("redis://localhost:6379/2")
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NoError(t, client.Close())
}
