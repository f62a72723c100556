package memory

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// Receipts issued by the memory vendor have the form base64(signature)|message,
// where the signature is an ed25519 signature of message by the vendor's key.

func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

func GenerateValidReceipt(owner ed25519.PrivateKey, message string) string {
	signature := ed25519.Sign(owner, []byte(message))
	return base64.StdEncoding.EncodeToString(signature) + "|" + message
}

// VerifyReceipt reports whether receipt carries a valid signature by publicKey.
func VerifyReceipt(publicKey ed25519.PublicKey, receipt string) bool {
	signature, message, err := parseReceipt(receipt)
	if err != nil {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}

func parseReceipt(receipt string) (signature []byte, message []byte, err error) {
	sig, msg, ok := strings.Cut(receipt, "|")
	if !ok || msg == "" {
		return nil, nil, fmt.Errorf("invalid receipt format: %s", receipt)
	}

	signature, err = base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return nil, nil, fmt.Errorf("error decoding signature: %w", err)
	}
	if len(signature) != ed25519.SignatureSize {
		return nil, nil, fmt.Errorf("invalid signature length: %d", len(signature))
	}

	return signature, []byte(msg), nil
}
