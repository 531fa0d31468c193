// Package authtest holds fixtures shared by tests that need signing keys.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
)

var (
	once sync.Once
	key  *rsa.PrivateKey
	err  error
)

// Key returns a process-wide RSA key so tests do not pay for generation twice.
func Key(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	once.Do(func() { key, err = rsa.GenerateKey(rand.Reader, 2048) })
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return key
}

// OtherKey generates a fresh key unrelated to Key.
func OtherKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return k
}

func PrivatePEM(k *rsa.PrivateKey) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k)}))
}

func PublicPEM(t testing.TB, k *rsa.PublicKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(k)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}
