package device

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encrypt produces an aes128gcm body for uaPub the way a push service does.
func encrypt(t *testing.T, uaPub *ecdh.PublicKey, auth, plaintext []byte, rs int) []byte {
	t.Helper()
	asPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	shared, err := asPriv.ECDH(uaPub)
	require.NoError(t, err)

	info := append(append(append([]byte{}, webPushInfo...), uaPub.Bytes()...), asPriv.PublicKey().Bytes()...)
	ikm, err := derive(shared, auth, info, 32)
	require.NoError(t, err)

	salt := make([]byte, saltLen)
	_, err = rand.Read(salt)
	require.NoError(t, err)
	cek, err := derive(ikm, salt, cekInfo, keyLen)
	require.NoError(t, err)
	baseNonce, err := derive(ikm, salt, nonceInfo, nonceLen)
	require.NoError(t, err)

	block, err := aes.NewCipher(cek)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	var body bytes.Buffer
	body.Write(salt)
	_ = binary.Write(&body, binary.BigEndian, uint32(rs))
	body.WriteByte(65)
	body.Write(asPriv.PublicKey().Bytes())

	chunk := rs - tagLen - 1
	for seq := uint64(0); ; seq++ {
		n := min(chunk, len(plaintext))
		record := append([]byte{}, plaintext[:n]...)
		plaintext = plaintext[n:]
		if len(plaintext) == 0 {
			record = append(record, 0x02)
		} else {
			record = append(record, 0x01)
		}
		body.Write(gcm.Seal(nil, recordNonce(baseNonce, seq), record, nil))
		if len(plaintext) == 0 {
			break
		}
	}
	return body.Bytes()
}

func newChannelKeys(t *testing.T) (*ecdh.PrivateKey, []byte) {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, authSecretLen)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return priv, auth
}

func TestDecryptSingleRecord(t *testing.T) {
	priv, auth := newChannelKeys(t)
	msg := []byte(`{"title":"New case","data":{"url":"/cases/42"}}`)

	got, err := decrypt(priv, auth, encrypt(t, priv.PublicKey(), auth, msg, 4096))
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestDecryptMultipleRecords(t *testing.T) {
	priv, auth := newChannelKeys(t)
	msg := bytes.Repeat([]byte("0123456789"), 25)

	got, err := decrypt(priv, auth, encrypt(t, priv.PublicKey(), auth, msg, 64))
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestDecryptEmptyPayload(t *testing.T) {
	priv, auth := newChannelKeys(t)

	got, err := decrypt(priv, auth, encrypt(t, priv.PublicKey(), auth, nil, 4096))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecryptRejects(t *testing.T) {
	priv, auth := newChannelKeys(t)
	good := encrypt(t, priv.PublicKey(), auth, []byte("hello"), 4096)

	wrongAuth := append([]byte{}, auth...)
	wrongAuth[0] ^= 0xff
	otherPriv, _ := newChannelKeys(t)

	tampered := append([]byte{}, good...)
	tampered[len(tampered)-1] ^= 0x01

	smallRS := append([]byte{}, good...)
	binary.BigEndian.PutUint32(smallRS[saltLen:], 17)

	tests := []struct {
		name string
		priv *ecdh.PrivateKey
		auth []byte
		body []byte
	}{
		{"empty body", priv, auth, nil},
		{"header only", priv, auth, good[:headerLen]},
		{"no records", priv, auth, good[:headerLen+65]},
		{"wrong auth secret", priv, wrongAuth, good},
		{"wrong recipient", otherPriv, auth, good},
		{"tampered tag", priv, auth, tampered},
		{"record size too small", priv, auth, smallRS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decrypt(tt.priv, tt.auth, tt.body)
			assert.ErrorIs(t, err, errDecrypt)
		})
	}
}

func TestUnpad(t *testing.T) {
	got, err := unpad([]byte{'h', 'i', 0x02, 0, 0}, true)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)

	got, err = unpad([]byte{'h', 'i', 0x01}, false)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)

	_, err = unpad([]byte{'h', 'i', 0x01}, true)
	assert.Error(t, err, "non-final delimiter on last record")

	_, err = unpad([]byte{0, 0, 0}, true)
	assert.Error(t, err, "all padding")
}
