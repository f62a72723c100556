package googleplay

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, key *rsa.PrivateKey, data string) string {
	digest := sha1.Sum([]byte(data))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

func TestParsePublicKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	parsed, err := ParsePublicKey(base64.StdEncoding.EncodeToString(der))
	require.NoError(t, err)
	require.True(t, key.PublicKey.Equal(parsed))

	_, err = ParsePublicKey("not base64!")
	require.Error(t, err)

	_, err = ParsePublicKey(base64.StdEncoding.EncodeToString([]byte("garbage")))
	require.Error(t, err)

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err = x509.MarshalPKIXPublicKey(&ecKey.PublicKey)
	require.NoError(t, err)
	_, err = ParsePublicKey(base64.StdEncoding.EncodeToString(der))
	require.Error(t, err)
}

func TestVerifyPurchase(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	data := `{"orderId":"GPA.1","productId":"gas","purchaseToken":"tok"}`
	sig := sign(t, key, data)

	require.NoError(t, VerifyPurchase(&key.PublicKey, data, sig))

	for _, tt := range []struct {
		name      string
		data, sig string
		key       *rsa.PublicKey
	}{
		{"empty data", "", sig, &key.PublicKey},
		{"empty signature", data, "", &key.PublicKey},
		{"signature not base64", data, "%%%", &key.PublicKey},
		{"tampered data", data + " ", sig, &key.PublicKey},
		{"wrong key", data, sig, &other.PublicKey},
	} {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, VerifyPurchase(tt.key, tt.data, tt.sig), ErrInvalidSignature)
		})
	}
}
