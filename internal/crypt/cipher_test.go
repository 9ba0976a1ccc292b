package crypt

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipher(t *testing.T, password string) *Cipher {
	t.Helper()
	c, err := New(password)
	require.NoError(t, err)
	// cheap key derivation keeps the tests fast
	c.scryptN = 1 << 10
	return c
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestRoundTrip(t *testing.T) {
	c := testCipher(t, "hunter2")

	sizes := []int{0, 1, 100, ChunkSize - 1, ChunkSize, ChunkSize + 1, 3*ChunkSize + 17}
	for _, size := range sizes {
		plain := randomBytes(t, size)

		var enc bytes.Buffer
		require.NoError(t, c.EncryptStream(&enc, bytes.NewReader(plain)), "size %d", size)

		var dec bytes.Buffer
		require.NoError(t, c.DecryptStream(&dec, bytes.NewReader(enc.Bytes())), "size %d", size)
		assert.Equal(t, plain, dec.Bytes(), "size %d", size)
	}
}

func TestFileRoundTrip(t *testing.T) {
	assert := assert.New(t)
	c := testCipher(t, "hunter2")
	dir := t.TempDir()

	src := filepath.Join(dir, "plain")
	enc := filepath.Join(dir, "enc")
	dec := filepath.Join(dir, "dec")
	plain := randomBytes(t, 2*ChunkSize+5)
	require.NoError(t, os.WriteFile(src, plain, 0o600))

	assert.NoError(c.Encrypt(src, enc))
	assert.NoError(c.Decrypt(enc, dec))

	got, err := os.ReadFile(dec)
	assert.NoError(err)
	assert.Equal(plain, got)
}

func TestEmptyFile(t *testing.T) {
	assert := assert.New(t)
	c := testCipher(t, "hunter2")
	dir := t.TempDir()

	src := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(src, nil, 0o600))

	assert.NoError(c.Encrypt(src, filepath.Join(dir, "enc")))
	assert.NoError(c.Decrypt(filepath.Join(dir, "enc"), filepath.Join(dir, "dec")))

	got, err := os.ReadFile(filepath.Join(dir, "dec"))
	assert.NoError(err)
	assert.Empty(got)
}

func TestWrongPassword(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))
	require.NoError(t, testCipher(t, "right").Encrypt(src, filepath.Join(dir, "enc")))

	err := testCipher(t, "wrong").Decrypt(filepath.Join(dir, "enc"), filepath.Join(dir, "dec"))
	assert.ErrorIs(err, ErrAuthFailed)
	assert.NoFileExists(filepath.Join(dir, "dec"))
}

func TestTamperedAndTruncated(t *testing.T) {
	c := testCipher(t, "hunter2")
	plain := randomBytes(t, 2*ChunkSize)

	var enc bytes.Buffer
	require.NoError(t, c.EncryptStream(&enc, bytes.NewReader(plain)))
	sealed := enc.Bytes()

	flipped := append([]byte(nil), sealed...)
	flipped[headerSize+10] ^= 0xff
	assert.ErrorIs(t, c.DecryptStream(&bytes.Buffer{}, bytes.NewReader(flipped)), ErrAuthFailed)

	// drop the final chunk: the remaining full chunk is not marked final
	chunk := ChunkSize + 16
	cut := sealed[:headerSize+chunk]
	assert.ErrorIs(t, c.DecryptStream(&bytes.Buffer{}, bytes.NewReader(cut)), ErrAuthFailed)

	assert.ErrorIs(t, c.DecryptStream(&bytes.Buffer{}, bytes.NewReader([]byte("nope"))), ErrBadHeader)
}

func TestEmptyPassword(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}
