package pngchunk

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// fastParams keeps key derivation cheap in tests.
var fastParams = KDFParams{KDF: KDFPBKDF2SHA256, Iterations: 10000, KeySize: 32}

func testKeyProvider(password string) *PasswordKeyProvider {
	return NewPasswordKeyProvider([]byte(password), fastParams)
}

func TestSealMessage_Plain(t *testing.T) {
	msg := []byte("hello")
	sealed, err := SealMessage(msg, SealOptions{})
	if err != nil {
		t.Fatalf("SealMessage failed: %v", err)
	}
	if !bytes.Equal(sealed, msg) {
		t.Errorf("plain seal changed the message: %q", sealed)
	}
	if IsSealed(sealed) {
		t.Error("plain message reported as sealed")
	}

	opened, err := OpenMessage(sealed, nil)
	if err != nil {
		t.Fatalf("OpenMessage failed: %v", err)
	}
	if !bytes.Equal(opened, msg) {
		t.Errorf("OpenMessage() = %q, want %q", opened, msg)
	}
}

func TestSealMessage_RoundTrip(t *testing.T) {
	msg := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog. ", 50))

	tests := []struct {
		name string
		opts SealOptions
	}{
		{"zlib", SealOptions{Compression: CompressionZlib}},
		{"lz4", SealOptions{Compression: CompressionLZ4}},
		{"aes", SealOptions{Cipher: CipherAES256GCM, KeyProvider: testKeyProvider("pw")}},
		{"chacha", SealOptions{Cipher: CipherChaCha20Poly1305, KeyProvider: testKeyProvider("pw")}},
		{"zlib+aes", SealOptions{Compression: CompressionZlib, Cipher: CipherAES256GCM, KeyProvider: testKeyProvider("pw")}},
		{"lz4+chacha", SealOptions{Compression: CompressionLZ4, Cipher: CipherChaCha20Poly1305, KeyProvider: testKeyProvider("pw")}},
		{"sha512", SealOptions{Cipher: CipherAES256GCM, KeyProvider: NewPasswordKeyProvider([]byte("pw"), KDFParams{KDF: KDFPBKDF2SHA512, Iterations: 10000})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := SealMessage(msg, tt.opts)
			if err != nil {
				t.Fatalf("SealMessage failed: %v", err)
			}
			if !IsSealed(sealed) {
				t.Fatal("sealed message lacks the envelope magic")
			}
			if tt.opts.Compression != CompressionNone && len(sealed) >= len(msg) {
				t.Errorf("compressed envelope is %d bytes, message is %d", len(sealed), len(msg))
			}
			if tt.opts.Cipher != CipherNone && bytes.Contains(sealed, []byte("quick brown fox")) {
				t.Error("encrypted envelope leaks plaintext")
			}

			opened, err := OpenMessage(sealed, testKeyProvider("pw"))
			if err != nil {
				t.Fatalf("OpenMessage failed: %v", err)
			}
			if !bytes.Equal(opened, msg) {
				t.Error("OpenMessage did not restore the message")
			}
		})
	}
}

func TestOpenMessage_Argon2id(t *testing.T) {
	kp := NewPasswordKeyProvider([]byte("argon"), KDFParams{
		KDF:         KDFArgon2id,
		Iterations:  1,
		Memory:      8 * 1024,
		Parallelism: 1,
	})
	sealed, err := SealMessage([]byte("argon2id"), SealOptions{Cipher: CipherChaCha20Poly1305, KeyProvider: kp})
	if err != nil {
		t.Fatalf("SealMessage failed: %v", err)
	}

	// The params travel in the envelope, so a provider with different
	// defaults still opens it.
	opened, err := OpenMessage(sealed, NewPasswordKeyProvider([]byte("argon"), KDFParams{}))
	if err != nil {
		t.Fatalf("OpenMessage failed: %v", err)
	}
	if string(opened) != "argon2id" {
		t.Errorf("OpenMessage() = %q", opened)
	}
}

func TestOpenMessage_Errors(t *testing.T) {
	opts := SealOptions{Cipher: CipherAES256GCM, KeyProvider: testKeyProvider("right")}
	sealed, err := SealMessage([]byte("secret"), opts)
	if err != nil {
		t.Fatalf("SealMessage failed: %v", err)
	}

	t.Run("wrong passphrase", func(t *testing.T) {
		_, err := OpenMessage(sealed, testKeyProvider("wrong"))
		if !errors.Is(err, ErrAuthFailed) {
			t.Errorf("error = %v, want ErrAuthFailed", err)
		}
		if !IsEnvelopeError(err) {
			t.Errorf("expected *EnvelopeError, got %T", err)
		}
	})

	t.Run("no key provider", func(t *testing.T) {
		if _, err := OpenMessage(sealed, nil); !errors.Is(err, ErrPassphraseRequired) {
			t.Errorf("error = %v, want ErrPassphraseRequired", err)
		}
	})

	t.Run("tampered body", func(t *testing.T) {
		tampered := bytes.Clone(sealed)
		tampered[len(tampered)-1] ^= 0x01
		if _, err := OpenMessage(tampered, testKeyProvider("right")); !errors.Is(err, ErrAuthFailed) {
			t.Errorf("error = %v, want ErrAuthFailed", err)
		}
	})

	t.Run("truncated header", func(t *testing.T) {
		truncated := sealed[:len(EnvelopeMagic)+2]
		if _, err := OpenMessage(truncated, testKeyProvider("right")); !errors.Is(err, ErrInvalidEnvelope) {
			t.Errorf("error = %v, want ErrInvalidEnvelope", err)
		}
	})

	t.Run("future version", func(t *testing.T) {
		header, err := headerEncMode.Marshal(envelopeHeader{Version: EnvelopeVersion + 1})
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		data := append(EnvelopeMagic[:], header...)
		if _, err := OpenMessage(data, nil); !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("error = %v, want ErrUnsupportedVersion", err)
		}
	})

	t.Run("missing key material", func(t *testing.T) {
		header, err := headerEncMode.Marshal(envelopeHeader{Version: EnvelopeVersion, Cipher: CipherAES256GCM})
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		data := append(EnvelopeMagic[:], header...)
		if _, err := OpenMessage(data, testKeyProvider("right")); !errors.Is(err, ErrInvalidEnvelope) {
			t.Errorf("error = %v, want ErrInvalidEnvelope", err)
		}
	})
}

func TestSealMessage_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts SealOptions
		want error
	}{
		{"cipher without key provider", SealOptions{Cipher: CipherAES256GCM}, ErrNilKeyProvider},
		{"unknown cipher", SealOptions{Cipher: CipherSuite(9)}, ErrUnsupportedCipher},
		{"unknown compression", SealOptions{Compression: Compression(9)}, ErrUnsupportedCodec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SealMessage([]byte("x"), tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("SealMessage() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := SealMessage(make([]byte, 11), SealOptions{MaxMessageSize: 10}); !IsValidationError(err) {
		t.Errorf("oversized message error = %v, want *ValidationError", err)
	}
	if _, err := SealMessage([]byte("x"), SealOptions{Compression: CompressionZlib, MaxMessageSize: DefaultMaxMessageSize + 1}); !IsValidationError(err) {
		t.Errorf("limit above DefaultMaxMessageSize error = %v, want *ValidationError", err)
	}
}

// rawEnvelope assembles an envelope from a header and body without any of
// the checks SealMessage applies.
func rawEnvelope(t *testing.T, header envelopeHeader, body []byte) []byte {
	t.Helper()
	headerBytes, err := headerEncMode.Marshal(header)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	data := append([]byte(nil), EnvelopeMagic[:]...)
	data = append(data, headerBytes...)
	return append(data, body...)
}

// countingKeyProvider records how often a key was derived.
type countingKeyProvider struct {
	*PasswordKeyProvider
	derived int
}

func (c *countingKeyProvider) DeriveKey(salt []byte, params KDFParams) ([]byte, error) {
	c.derived++
	return c.PasswordKeyProvider.DeriveKey(salt, params)
}

func TestOpenMessage_OversizedHeader(t *testing.T) {
	// The header is rejected before the body is looked at.
	const size = DefaultMaxMessageSize + 16*1024*1024
	body, err := compress(CompressionZlib, []byte("tiny"))
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}

	data := rawEnvelope(t, envelopeHeader{
		Version:     EnvelopeVersion,
		Compression: CompressionZlib,
		Size:        size,
	}, body)

	msg, err := OpenMessage(data, nil)
	if !errors.Is(err, ErrInvalidEnvelope) {
		t.Errorf("OpenMessage() error = %v, want ErrInvalidEnvelope", err)
	}
	if msg != nil {
		t.Errorf("OpenMessage() returned %d bytes for a rejected envelope", len(msg))
	}
}

func TestOpenMessage_ExcessiveKDFCost(t *testing.T) {
	tests := []struct {
		name   string
		params KDFParams
	}{
		{"pbkdf2", KDFParams{KDF: KDFPBKDF2SHA256, Iterations: 1<<32 - 1, KeySize: 32}},
		{"argon2id", KDFParams{KDF: KDFArgon2id, Iterations: 1<<32 - 1, Memory: 4 * 1024 * 1024, Parallelism: 255, KeySize: 32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := tt.params
			data := rawEnvelope(t, envelopeHeader{
				Version: EnvelopeVersion,
				Cipher:  CipherChaCha20Poly1305,
				Size:    5,
				Salt:    make([]byte, DefaultSaltSize),
				Nonce:   make([]byte, 12),
				KDF:     &params,
			}, make([]byte, 21))

			kp := &countingKeyProvider{PasswordKeyProvider: testKeyProvider("right")}
			if _, err := OpenMessage(data, kp); !errors.Is(err, ErrInvalidEnvelope) {
				t.Errorf("OpenMessage() error = %v, want ErrInvalidEnvelope", err)
			}
			if kp.derived != 0 {
				t.Errorf("key derived %d times for a rejected header", kp.derived)
			}
		})
	}
}

func TestOpenMessage_ReturnsCopy(t *testing.T) {
	plain := []byte("plain text")
	unsealed := rawEnvelope(t, envelopeHeader{Version: EnvelopeVersion, Size: 5}, []byte("hello"))

	for name, data := range map[string][]byte{"plain": plain, "unsealed envelope": unsealed} {
		t.Run(name, func(t *testing.T) {
			before := bytes.Clone(data)
			msg, err := OpenMessage(data, nil)
			if err != nil {
				t.Fatalf("OpenMessage failed: %v", err)
			}
			for i := range msg {
				msg[i] = 'X'
			}
			if !bytes.Equal(data, before) {
				t.Errorf("changing the message changed its source: %q", data)
			}
		})
	}
}

func TestCipherEngine_ShortCiphertext(t *testing.T) {
	engine, err := NewCipherEngine(CipherAES256GCM, make([]byte, 32))
	if err != nil {
		t.Fatalf("NewCipherEngine failed: %v", err)
	}
	_, err = engine.Open(make([]byte, engine.NonceSize()), make([]byte, 5), nil)
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Open() error = %v, want ErrAuthFailed", err)
	}
	if !IsValidationError(err) {
		t.Errorf("expected a *ValidationError in the chain, got %v", err)
	}
}

func TestResealMessage(t *testing.T) {
	oldKP := testKeyProvider("old")
	newKP := testKeyProvider("new")

	sealed, err := SealMessage([]byte("rotate me"), SealOptions{Cipher: CipherAES256GCM, KeyProvider: oldKP})
	if err != nil {
		t.Fatalf("SealMessage failed: %v", err)
	}

	resealed, err := ResealMessage(sealed, oldKP, SealOptions{
		Compression: CompressionZlib,
		Cipher:      CipherChaCha20Poly1305,
		KeyProvider: newKP,
	})
	if err != nil {
		t.Fatalf("ResealMessage failed: %v", err)
	}

	if _, err := OpenMessage(resealed, oldKP); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("old passphrase still opens resealed message: %v", err)
	}
	opened, err := OpenMessage(resealed, newKP)
	if err != nil {
		t.Fatalf("OpenMessage failed: %v", err)
	}
	if string(opened) != "rotate me" {
		t.Errorf("OpenMessage() = %q", opened)
	}
}

func TestMultiKeyProvider(t *testing.T) {
	if _, err := NewMultiKeyProvider(); err == nil {
		t.Error("NewMultiKeyProvider() with no providers should fail")
	}

	sealed, err := SealMessage([]byte("multi"), SealOptions{Cipher: CipherAES256GCM, KeyProvider: testKeyProvider("second")})
	if err != nil {
		t.Fatalf("SealMessage failed: %v", err)
	}

	multi, err := NewMultiKeyProvider(testKeyProvider("first"), testKeyProvider("second"))
	if err != nil {
		t.Fatalf("NewMultiKeyProvider failed: %v", err)
	}
	opened, err := OpenMessage(sealed, multi)
	if err != nil {
		t.Fatalf("OpenMessage failed: %v", err)
	}
	if string(opened) != "multi" {
		t.Errorf("OpenMessage() = %q", opened)
	}

	none, _ := NewMultiKeyProvider(testKeyProvider("a"), testKeyProvider("b"))
	if _, err := OpenMessage(sealed, none); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("error = %v, want ErrAuthFailed", err)
	}
}

func TestEnvKeyProvider(t *testing.T) {
	t.Setenv("PNGCHUNK_TEST_PASSPHRASE", "from-env")
	kp := NewEnvKeyProvider("PNGCHUNK_TEST_PASSPHRASE").WithParams(fastParams)

	sealed, err := SealMessage([]byte("env"), SealOptions{Cipher: CipherAES256GCM, KeyProvider: kp})
	if err != nil {
		t.Fatalf("SealMessage failed: %v", err)
	}
	opened, err := OpenMessage(sealed, testKeyProvider("from-env"))
	if err != nil {
		t.Fatalf("OpenMessage failed: %v", err)
	}
	if string(opened) != "env" {
		t.Errorf("OpenMessage() = %q", opened)
	}

	unset := NewEnvKeyProvider("PNGCHUNK_TEST_UNSET_VARIABLE")
	if _, err := unset.DeriveKey([]byte("salt"), fastParams); err == nil {
		t.Error("DeriveKey with unset variable should fail")
	}
}

func TestSealedMessageInChunk(t *testing.T) {
	sealed, err := SealMessage([]byte("inside a png"), SealOptions{Compression: CompressionLZ4, Cipher: CipherAES256GCM, KeyProvider: testKeyProvider("pw")})
	if err != nil {
		t.Fatalf("SealMessage failed: %v", err)
	}

	p := New()
	p.AppendChunk(NewChunk(mustChunkType(t, "RuSt"), sealed))
	reparsed, err := Parse(p.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	c := reparsed.ChunkByType("RuSt")
	if _, err := c.DataString(); !errors.Is(err, ErrNotUTF8Text) {
		t.Errorf("sealed payload should not read as text, got %v", err)
	}
	opened, err := OpenMessage(c.Data(), testKeyProvider("pw"))
	if err != nil {
		t.Fatalf("OpenMessage failed: %v", err)
	}
	if string(opened) != "inside a png" {
		t.Errorf("OpenMessage() = %q", opened)
	}
}

func TestKDFParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  KDFParams
		wantErr bool
	}{
		{"default argon2id", DefaultArgon2idParams(), false},
		{"default pbkdf2", DefaultPBKDF2Params(), false},
		{"short key", KDFParams{KDF: KDFPBKDF2SHA256, Iterations: 10000, KeySize: 16}, true},
		{"few pbkdf2 iterations", KDFParams{KDF: KDFPBKDF2SHA256, Iterations: 1, KeySize: 32}, true},
		{"tiny argon2 memory", KDFParams{KDF: KDFArgon2id, Iterations: 1, Memory: 1024, Parallelism: 1, KeySize: 32}, true},
		{"zero parallelism", KDFParams{KDF: KDFArgon2id, Iterations: 1, Memory: 8 * 1024, KeySize: 32}, true},
		{"unknown kdf", KDFParams{KDF: KDF(7), Iterations: 1, KeySize: 32}, true},
		{"max pbkdf2 iterations", KDFParams{KDF: KDFPBKDF2SHA512, Iterations: maxPBKDF2Iterations, KeySize: 32}, false},
		{"too many pbkdf2 iterations", KDFParams{KDF: KDFPBKDF2SHA256, Iterations: 1<<32 - 1, KeySize: 32}, true},
		{"too many argon2 passes", KDFParams{KDF: KDFArgon2id, Iterations: 1<<32 - 1, Memory: 64 * 1024, Parallelism: 4, KeySize: 32}, true},
		{"huge argon2 memory", KDFParams{KDF: KDFArgon2id, Iterations: 3, Memory: 4 * 1024 * 1024, Parallelism: 4, KeySize: 32}, true},
		{"too many argon2 lanes", KDFParams{KDF: KDFArgon2id, Iterations: 3, Memory: 64 * 1024, Parallelism: 255, KeySize: 32}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseCipherAndCompression(t *testing.T) {
	for _, c := range []CipherSuite{CipherNone, CipherAES256GCM, CipherChaCha20Poly1305} {
		got, err := ParseCipherSuite(c.String())
		if err != nil || got != c {
			t.Errorf("ParseCipherSuite(%q) = %v, %v", c, got, err)
		}
	}
	if _, err := ParseCipherSuite("rot13"); !errors.Is(err, ErrUnsupportedCipher) {
		t.Errorf("ParseCipherSuite(rot13) error = %v", err)
	}

	for _, c := range []Compression{CompressionNone, CompressionZlib, CompressionLZ4} {
		got, err := ParseCompression(c.String())
		if err != nil || got != c {
			t.Errorf("ParseCompression(%q) = %v, %v", c, got, err)
		}
	}
	if _, err := ParseCompression("brotli"); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("ParseCompression(brotli) error = %v", err)
	}
}
