// Package crypt encrypts files exchanged between nodes with a pre-shared
// password. Files are processed as a stream of authenticated chunks so that
// arbitrarily large files never have to fit in memory.
//
// Layout: magic(4) | version(1) | salt(16) | nonce prefix(16) | chunks...
// Each chunk is sealed with XChaCha20-Poly1305 under a key derived from the
// password and salt with scrypt. The chunk nonce is the prefix followed by a
// big-endian counter whose top bit marks the final chunk, which makes
// truncation and reordering detectable.
package crypt

import (
	"bufio"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	ChunkSize = 64 * 1024

	magic      = "TGXC"
	version    = 1
	saltSize   = 16
	prefixSize = chacha20poly1305.NonceSizeX - 8
	headerSize = len(magic) + 1 + saltSize + prefixSize

	lastChunk = uint64(1) << 63
)

var (
	ErrAuthFailed    = errors.New("crypt: message authentication failed")
	ErrBadHeader     = errors.New("crypt: not an encrypted file")
	ErrEmptyPassword = errors.New("crypt: empty password")
)

// Cipher holds the pre-shared password.
type Cipher struct {
	password []byte
	scryptN  int
}

func New(password string) (*Cipher, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	return &Cipher{password: []byte(password), scryptN: 1 << 15}, nil
}

func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(c.password, salt, c.scryptN, 8, 1, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

func chunkNonce(prefix []byte, counter uint64, last bool) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	copy(nonce, prefix)
	if last {
		counter |= lastChunk
	}
	binary.BigEndian.PutUint64(nonce[prefixSize:], counter)
	return nonce
}

// EncryptStream reads all of src and writes the encrypted form to dst.
func (c *Cipher) EncryptStream(dst io.Writer, src io.Reader) error {
	header := make([]byte, headerSize)
	copy(header, magic)
	header[len(magic)] = version
	if _, err := rand.Read(header[len(magic)+1:]); err != nil {
		return fmt.Errorf("read random: %w", err)
	}
	salt := header[len(magic)+1 : len(magic)+1+saltSize]
	prefix := header[len(magic)+1+saltSize:]

	aead, err := c.aead(salt)
	if err != nil {
		return err
	}
	if _, err := dst.Write(header); err != nil {
		return err
	}

	br := bufio.NewReaderSize(src, ChunkSize)
	buf := make([]byte, ChunkSize)
	out := make([]byte, 0, ChunkSize+aead.Overhead())
	for counter := uint64(0); ; counter++ {
		n, err := io.ReadFull(br, buf)
		last := false
		switch {
		case err == io.EOF || err == io.ErrUnexpectedEOF:
			last = true
		case err != nil:
			return err
		default:
			last, err = atEOF(br)
			if err != nil {
				return err
			}
		}

		out = aead.Seal(out[:0], chunkNonce(prefix, counter, last), buf[:n], header)
		if _, err := dst.Write(out); err != nil {
			return err
		}
		if last {
			return nil
		}
	}
}

// DecryptStream reverses EncryptStream. Output already written to dst must
// be discarded when it fails.
func (c *Cipher) DecryptStream(dst io.Writer, src io.Reader) error {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(src, header); err != nil {
		return ErrBadHeader
	}
	if string(header[:len(magic)]) != magic || header[len(magic)] != version {
		return ErrBadHeader
	}
	salt := header[len(magic)+1 : len(magic)+1+saltSize]
	prefix := header[len(magic)+1+saltSize:]

	aead, err := c.aead(salt)
	if err != nil {
		return err
	}

	br := bufio.NewReaderSize(src, ChunkSize+aead.Overhead())
	buf := make([]byte, ChunkSize+aead.Overhead())
	out := make([]byte, 0, ChunkSize)
	for counter := uint64(0); ; counter++ {
		n, err := io.ReadFull(br, buf)
		last := false
		switch {
		case err == io.EOF:
			// the final chunk never arrived
			return ErrAuthFailed
		case err == io.ErrUnexpectedEOF:
			last = true
		case err != nil:
			return err
		default:
			last, err = atEOF(br)
			if err != nil {
				return err
			}
		}

		out, err = aead.Open(out[:0], chunkNonce(prefix, counter, last), buf[:n], header)
		if err != nil {
			return ErrAuthFailed
		}
		if _, err := dst.Write(out); err != nil {
			return err
		}
		if last {
			return nil
		}
	}
}

func atEOF(br *bufio.Reader) (bool, error) {
	_, err := br.Peek(1)
	if err == io.EOF {
		return true, nil
	}
	return false, err
}

// Encrypt writes the encrypted form of the file at src to dst.
func (c *Cipher) Encrypt(src, dst string) error {
	return c.convert(src, dst, c.EncryptStream)
}

// Decrypt writes the plaintext of the encrypted file at src to dst. Nothing
// is left at dst when it fails.
func (c *Cipher) Decrypt(src, dst string) error {
	return c.convert(src, dst, c.DecryptStream)
}

func (c *Cipher) convert(src, dst string, fn func(io.Writer, io.Reader) error) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	bw := bufio.NewWriterSize(out, ChunkSize)
	if err := fn(bw, in); err != nil {
		return err
	}
	return bw.Flush()
}
