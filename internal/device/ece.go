package device

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// aes128gcm content coding (RFC 8188) with Web Push key derivation (RFC 8291).
const (
	saltLen      = 16
	headerLen    = saltLen + 4 + 1
	keyLen       = 16
	nonceLen     = 12
	tagLen       = 16
	minRecordLen = tagLen + 2
)

var (
	webPushInfo = []byte("WebPush: info\x00")
	cekInfo     = []byte("Content-Encoding: aes128gcm\x00")
	nonceInfo   = []byte("Content-Encoding: nonce\x00")
)

var errDecrypt = errors.New("decrypt push message")

// decrypt opens an aes128gcm body addressed to priv with auth secret auth.
func decrypt(priv *ecdh.PrivateKey, auth, body []byte) ([]byte, error) {
	if len(body) < headerLen {
		return nil, fmt.Errorf("%w: truncated header", errDecrypt)
	}
	salt := body[:saltLen]
	rs := int(binary.BigEndian.Uint32(body[saltLen : saltLen+4]))
	idLen := int(body[saltLen+4])
	if rs < minRecordLen {
		return nil, fmt.Errorf("%w: record size %d", errDecrypt, rs)
	}
	if len(body) < headerLen+idLen {
		return nil, fmt.Errorf("%w: truncated key id", errDecrypt)
	}
	senderPub, err := ecdh.P256().NewPublicKey(body[headerLen : headerLen+idLen])
	if err != nil {
		return nil, fmt.Errorf("%w: sender key: %v", errDecrypt, err)
	}
	shared, err := priv.ECDH(senderPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDecrypt, err)
	}

	info := make([]byte, 0, len(webPushInfo)+2*65)
	info = append(info, webPushInfo...)
	info = append(info, priv.PublicKey().Bytes()...)
	info = append(info, senderPub.Bytes()...)
	ikm, err := derive(shared, auth, info, 32)
	if err != nil {
		return nil, err
	}
	cek, err := derive(ikm, salt, cekInfo, keyLen)
	if err != nil {
		return nil, err
	}
	baseNonce, err := derive(ikm, salt, nonceInfo, nonceLen)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDecrypt, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDecrypt, err)
	}

	ciphertext := body[headerLen+idLen:]
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: no records", errDecrypt)
	}
	var out []byte
	for seq := uint64(0); len(ciphertext) > 0; seq++ {
		n := min(rs, len(ciphertext))
		record := ciphertext[:n]
		ciphertext = ciphertext[n:]
		last := len(ciphertext) == 0

		if len(record) <= tagLen {
			return nil, fmt.Errorf("%w: record %d too short", errDecrypt, seq)
		}
		plain, err := gcm.Open(nil, recordNonce(baseNonce, seq), record, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", errDecrypt, seq, err)
		}
		plain, err = unpad(plain, last)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", errDecrypt, seq, err)
		}
		out = append(out, plain...)
	}
	return out, nil
}

func derive(secret, salt, info []byte, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), out); err != nil {
		return nil, fmt.Errorf("%w: hkdf: %v", errDecrypt, err)
	}
	return out, nil
}

func recordNonce(base []byte, seq uint64) []byte {
	nonce := append([]byte(nil), base...)
	var s [8]byte
	binary.BigEndian.PutUint64(s[:], seq)
	for i := range s {
		nonce[nonceLen-8+i] ^= s[i]
	}
	return nonce
}

// unpad strips trailing zero padding and the record delimiter: 0x02 on
// the last record, 0x01 on every other.
func unpad(plain []byte, last bool) ([]byte, error) {
	i := len(plain) - 1
	for i >= 0 && plain[i] == 0 {
		i--
	}
	if i < 0 {
		return nil, errors.New("missing delimiter")
	}
	want := byte(0x01)
	if last {
		want = 0x02
	}
	if plain[i] != want {
		return nil, fmt.Errorf("unexpected delimiter 0x%02x", plain[i])
	}
	return plain[:i], nil
}
