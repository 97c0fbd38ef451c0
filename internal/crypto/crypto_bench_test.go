package crypto_test

import (
	"crypto/rand"
	"testing"

	"github.com/TheMichaelB/zpass/internal/crypto"
)

func BenchmarkKeyDerivation(b *testing.B) {
	salt, err := crypto.GenerateSalt()
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := crypto.DeriveKey([]byte("password123"), salt); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncrypt(b *testing.B) {
	key := randomKey(b)
	plaintext := make([]byte, 64*1024)
	if _, err := rand.Read(plaintext); err != nil {
		b.Fatal(err)
	}

	for _, scheme := range []crypto.Scheme{crypto.SchemeCBC, crypto.SchemeAESGCM, crypto.SchemeXChaCha} {
		provider := crypto.NewProvider(crypto.WithScheme(scheme))
		b.Run(string(scheme), func(b *testing.B) {
			b.SetBytes(int64(len(plaintext)))
			for i := 0; i < b.N; i++ {
				if _, err := provider.Encrypt(plaintext, key); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDecrypt(b *testing.B) {
	key := randomKey(b)
	plaintext := make([]byte, 64*1024)

	for _, scheme := range []crypto.Scheme{crypto.SchemeCBC, crypto.SchemeAESGCM, crypto.SchemeXChaCha} {
		provider := crypto.NewProvider(crypto.WithScheme(scheme))
		blob, err := provider.Encrypt(plaintext, key)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(string(scheme), func(b *testing.B) {
			b.SetBytes(int64(len(plaintext)))
			for i := 0; i < b.N; i++ {
				if _, err := provider.Decrypt(blob, key); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
