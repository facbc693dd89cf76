package cryptofmt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zffdev/zff/zffheader"
)

func TestDerivePBKDF2Deterministic(t *testing.T) {
	var salt [32]byte
	copy(salt[:], []byte("0123456789abcdef0123456789abcdef"))

	k1, err := DerivePBKDF2([]byte("hunter2"), salt, 1024)
	require.NoError(t, err)

	k2, err := DerivePBKDF2([]byte("hunter2"), salt, 1024)
	require.NoError(t, err)

	require.Equal(t, k1, k2)

	k3, err := DerivePBKDF2([]byte("different"), salt, 1024)
	require.NoError(t, err)
	require.NotEqual(t, k1, k3)
}

func TestDeriveArgon2idDeterministic(t *testing.T) {
	var salt [32]byte
	copy(salt[:], []byte("0123456789abcdef0123456789abcdef"))

	k1, err := DeriveArgon2id([]byte("hunter2"), salt, 64*1024, 1, 4)
	require.NoError(t, err)

	k2, err := DeriveArgon2id([]byte("hunter2"), salt, 64*1024, 1, 4)
	require.NoError(t, err)

	require.Equal(t, k1, k2)
}

func TestWrapUnwrapDataKeyRoundTrip(t *testing.T) {
	var kek, dataKey [KeySize]byte

	copy(kek[:], bytes.Repeat([]byte{0x11}, KeySize))
	copy(dataKey[:], bytes.Repeat([]byte{0x22}, KeySize))

	iv, wrapped, err := WrapDataKey(kek, dataKey)
	require.NoError(t, err)

	got, err := UnwrapDataKey(kek, iv, wrapped)
	require.NoError(t, err)
	require.Equal(t, dataKey, got)
}

func TestUnwrapDataKeyWrongKEKFails(t *testing.T) {
	var kek, wrongKEK, dataKey [KeySize]byte

	copy(kek[:], bytes.Repeat([]byte{0x11}, KeySize))
	copy(wrongKEK[:], bytes.Repeat([]byte{0x33}, KeySize))
	copy(dataKey[:], bytes.Repeat([]byte{0x22}, KeySize))

	iv, wrapped, err := WrapDataKey(kek, dataKey)
	require.NoError(t, err)

	_, err = UnwrapDataKey(wrongKEK, iv, wrapped)
	require.Error(t, err)
}

func TestAEADRoundTripAllAlgorithms(t *testing.T) {
	cases := []struct {
		name    string
		algo    uint8
		keyLen  int
	}{
		{"AES-128-GCM", zffheader.AlgoAES128GCM, 16},
		{"AES-256-GCM", zffheader.AlgoAES256GCM, 32},
		{"ChaCha20-Poly1305", zffheader.AlgoChaCha20Poly1305, 32},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key := bytes.Repeat([]byte{0x09}, tc.keyLen)

			aead, err := NewAEAD(tc.algo, key)
			require.NoError(t, err)

			nonce := DeriveNonce(1, 5)
			ad := AssociatedData(1, 5, 0)
			plaintext := []byte("the quick brown fox")

			ciphertext := aead.Seal(nil, nonce[:], plaintext, ad)

			got, err := aead.Open(nil, nonce[:], ciphertext, ad)
			require.NoError(t, err)
			require.Equal(t, plaintext, got)

			// Tampering with the ciphertext must fail authentication.
			ciphertext[0] ^= 0xFF
			_, err = aead.Open(nil, nonce[:], ciphertext, ad)
			require.Error(t, err)
		})
	}
}

func TestDeriveNonceDistinctPerChunk(t *testing.T) {
	seen := map[[NonceSize]byte]struct{}{}

	for chunk := uint64(0); chunk < 1000; chunk++ {
		n := DeriveNonce(7, chunk)
		_, dup := seen[n]
		require.False(t, dup)
		seen[n] = struct{}{}
	}
}

func TestNonceTrackerRejectsReuse(t *testing.T) {
	tracker := NewNonceTracker()

	require.NoError(t, tracker.Use(0))
	require.NoError(t, tracker.Use(1))
	require.Error(t, tracker.Use(0))
}

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := GenerateSigningKey()
	require.NoError(t, err)

	plaintext := []byte("chunk plaintext")
	sig := Sign(priv, plaintext)

	require.True(t, Verify(pub, plaintext, sig))

	tampered := append([]byte(nil), plaintext...)
	tampered[0] ^= 0xFF
	require.False(t, Verify(pub, tampered, sig))
}
