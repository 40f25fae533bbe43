package rawsocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHtons(t *testing.T) {
	assert.Equal(t, uint16(0xA488), htons(EtherType))
}

func TestOpenUnknownInterfaceFails(t *testing.T) {
	_, err := Open("does-not-exist-0")
	assert.Error(t, err)
}
