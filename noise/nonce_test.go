package noise

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNonceIncrementMonotonic(t *testing.T) {
	n := newNonce()
	require.Equal(t, uint64(0), n.value())
	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, n.increment())
		require.Equal(t, i, n.value())
	}
}

func TestNonceBytesLittleEndianCounter(t *testing.T) {
	n := newNonce()
	for i := 0; i < 300; i++ {
		require.NoError(t, n.increment())
	}
	b := n.bytes()
	require.Len(t, b, 12)
	counterValue := 300
	require.Equal(t, byte(counterValue), b[0])
	require.Equal(t, byte(300>>8), b[1])
	for _, trailing := range b[4:] {
		require.Zero(t, trailing)
	}
}

func TestNonceExhaustion(t *testing.T) {
	n := Nonce{counter: nonceMax}
	require.ErrorIs(t, n.assertValid(), ErrNonceExhausted)
	require.ErrorIs(t, n.increment(), ErrNonceExhausted)
	require.Equal(t, nonceMax, n.value(), "a failed increment must not advance the counter")
}

func TestNonceJustBelowCap(t *testing.T) {
	n := Nonce{counter: nonceMax - 1}
	require.NoError(t, n.assertValid())
	require.NoError(t, n.increment())
	require.Equal(t, nonceMax, n.value())
	require.ErrorIs(t, n.assertValid(), ErrNonceExhausted)
}
