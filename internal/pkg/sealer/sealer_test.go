package sealer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func key(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestSealOpenRoundTripProperty(t *testing.T) {
	s, err := New("k1", map[string][]byte{"k1": key(1)})
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		plaintext := rapid.SliceOf(rapid.Byte()).Draw(t, "plaintext")

		sealed, keyID, err := s.Seal(plaintext)
		if err != nil {
			t.Fatal(err)
		}
		if keyID != "k1" {
			t.Fatalf("sealed with %q", keyID)
		}

		opened, err := s.Open(keyID, sealed)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(plaintext, opened) {
			t.Fatalf("round trip mismatch")
		}
	})
}

func TestOpen_DetectsTampering(t *testing.T) {
	s, err := New("k1", map[string][]byte{"k1": key(1)})
	require.NoError(t, err)

	sealed, keyID, err := s.Seal([]byte(`{"game":"dice"}`))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = s.Open(keyID, sealed)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestOpen_RejectsRelabelledKey(t *testing.T) {
	s, err := New("k1", map[string][]byte{"k1": key(1), "k2": key(1)})
	require.NoError(t, err)

	sealed, _, err := s.Seal([]byte("context"))
	require.NoError(t, err)

	// Same key bytes, different id: associated data must not match.
	_, err = s.Open("k2", sealed)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReseal_MovesToActiveKey(t *testing.T) {
	old, err := New("k1", map[string][]byte{"k1": key(1)})
	require.NoError(t, err)
	sealed, _, err := old.Seal([]byte("context"))
	require.NoError(t, err)

	rotated, err := New("k2", map[string][]byte{"k1": key(1), "k2": key(2)})
	require.NoError(t, err)

	resealed, keyID, err := rotated.Reseal("k1", sealed)
	require.NoError(t, err)
	assert.Equal(t, "k2", keyID)

	opened, err := rotated.Open(keyID, resealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("context"), opened)
}

func TestNew_Validation(t *testing.T) {
	_, err := New("missing", map[string][]byte{"k1": key(1)})
	assert.ErrorIs(t, err, ErrUnknownKey)

	_, err = New("k1", map[string][]byte{"k1": []byte("short")})
	assert.Error(t, err)

	s, err := New("", nil)
	require.NoError(t, err)
	out, keyID, err := s.Seal([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "", keyID)
	assert.Equal(t, []byte("plain"), out)
}

func TestOpen_UnknownKey(t *testing.T) {
	s, err := New("k1", map[string][]byte{"k1": key(1)})
	require.NoError(t, err)

	_, err = s.Open("gone", []byte("whatever"))
	assert.ErrorIs(t, err, ErrUnknownKey)
}
