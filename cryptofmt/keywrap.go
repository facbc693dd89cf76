package cryptofmt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/zffdev/zff/errdefs"
)

// WrapDataKey encrypts dataKey under kek using AES-CBC (PBES2 semantics), returning a random IV and the ciphertext.
// The plaintext is PKCS#7 padded to the cipher's block size even though KeySize is already block-aligned, so the
// format tolerates a future data key length that isn't.
func WrapDataKey(kek [KeySize]byte, dataKey [KeySize]byte) (iv [16]byte, wrapped []byte, err error) {
	block, err := aes.NewCipher(kek[:])
	if err != nil {
		return iv, nil, fmt.Errorf("cryptofmt: new AES cipher: %w", err)
	}

	if _, err := io.ReadFull(rand.Reader, iv[:]); err != nil {
		return iv, nil, fmt.Errorf("cryptofmt: generate IV: %w", err)
	}

	padded := pkcs7Pad(dataKey[:], block.BlockSize())
	wrapped = make([]byte, len(padded))

	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(wrapped, padded)

	return iv, wrapped, nil
}

// UnwrapDataKey decrypts a data key previously wrapped by WrapDataKey.
func UnwrapDataKey(kek [KeySize]byte, iv [16]byte, wrapped []byte) ([KeySize]byte, error) {
	var dataKey [KeySize]byte

	block, err := aes.NewCipher(kek[:])
	if err != nil {
		return dataKey, fmt.Errorf("cryptofmt: new AES cipher: %w", err)
	}

	if len(wrapped) == 0 || len(wrapped)%block.BlockSize() != 0 {
		return dataKey, &errdefs.DecryptionFailedError{}
	}

	padded := make([]byte, len(wrapped))
	cipher.NewCBCDecrypter(block, iv[:]).CryptBlocks(padded, wrapped)

	plain, err := pkcs7Unpad(padded, block.BlockSize())
	if err != nil || len(plain) != KeySize {
		return dataKey, &errdefs.DecryptionFailedError{}
	}

	copy(dataKey[:], plain)

	return dataKey, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("cryptofmt: invalid padded length %d", len(data))
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("cryptofmt: invalid padding length %d", padLen)
	}

	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("cryptofmt: invalid padding bytes")
		}
	}

	return data[:len(data)-padLen], nil
}
