package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// TestGenerateKeypair 测试密钥对生成
func TestGenerateKeypair(t *testing.T) {
	for _, kt := range []KeyType{KeyTypeEd25519, KeyTypeSecp256k1, KeyTypeECDSA} {
		t.Run(kt.String(), func(t *testing.T) {
			requireBackends(t, kt)
			kp, err := GenerateKeypair(kt)
			if err != nil {
				t.Fatalf("GenerateKeypair() error = %v", err)
			}
			if kp.Type() != kt {
				t.Errorf("Keypair.Type() = %v, want %v", kp.Type(), kt)
			}
			if pub := kp.Public(); pub.Type() != kt {
				t.Errorf("PublicKey.Type() = %v, want %v", pub.Type(), kt)
			}
		})
	}

	t.Run("Unknown", func(t *testing.T) {
		_, err := GenerateKeypair(KeyType(99))
		if !errors.Is(err, ErrUnsupportedKeyType) {
			t.Errorf("GenerateKeypair(99) error = %v, want ErrUnsupportedKeyType", err)
		}
	})
}

func TestGenerateRSA(t *testing.T) {
	requireBackends(t, KeyTypeRSA)

	if _, err := GenerateRSA(1024); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("GenerateRSA(1024) error = %v, want ErrInvalidKeySize", err)
	}
	if _, err := GenerateRSA(RSAMaxKeySize + 1); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("GenerateRSA(too large) error = %v, want ErrInvalidKeySize", err)
	}
}

// TestSignAndVerify 测试签名和验证
func TestSignAndVerify(t *testing.T) {
	msg := []byte("hello dep2p")

	for _, kt := range KeyTypes {
		t.Run(kt.String(), func(t *testing.T) {
			requireBackends(t, kt)
			kp := testKeypair(t, kt)
			pub := kp.Public()

			sig, err := kp.Sign(msg)
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}
			if !pub.Verify(msg, sig) {
				t.Error("Verify() = false for valid signature")
			}

			tampered := bytes.Clone(msg)
			tampered[0] ^= 0x01
			if pub.Verify(tampered, sig) {
				t.Error("Verify() = true for tampered message")
			}

			badSig := bytes.Clone(sig)
			badSig[len(badSig)-1] ^= 0x01
			if pub.Verify(msg, badSig) {
				t.Error("Verify() = true for tampered signature")
			}

			if pub.Verify(msg, nil) {
				t.Error("Verify() = true for empty signature")
			}
			if pub.Verify(msg, []byte{0x30, 0x01}) {
				t.Error("Verify() = true for malformed signature")
			}

			other := testKeypairDistinct(t, kt, kp)
			if other.Public().Verify(msg, sig) {
				t.Error("Verify() = true under a different key")
			}
		})
	}
}

// testKeypairDistinct 生成与 kp 不同的同类型密钥对
func testKeypairDistinct(t *testing.T, kt KeyType, kp *Keypair) *Keypair {
	t.Helper()
	if kt != KeyTypeRSA {
		return testKeypair(t, kt)
	}
	other, err := GenerateRSA(RSAMinKeySize)
	if err != nil {
		t.Fatalf("GenerateRSA() error = %v", err)
	}
	if other.Public().Equal(kp.Public()) {
		t.Fatal("GenerateRSA() returned identical key")
	}
	return other
}

// TestSignDeterminism Ed25519 和 Secp256k1 签名是确定性的
func TestSignDeterminism(t *testing.T) {
	msg := []byte("deterministic")

	for _, kt := range []KeyType{KeyTypeEd25519, KeyTypeSecp256k1} {
		t.Run(kt.String(), func(t *testing.T) {
			requireBackends(t, kt)
			kp := testKeypair(t, kt)

			sig1, _ := kp.Sign(msg)
			sig2, _ := kp.Sign(msg)
			if !bytes.Equal(sig1, sig2) {
				t.Error("Sign() is not deterministic")
			}
		})
	}
}

func TestKeypairMarshalRoundTrip(t *testing.T) {
	for _, kt := range []KeyType{KeyTypeEd25519, KeyTypeSecp256k1, KeyTypeECDSA} {
		t.Run(kt.String(), func(t *testing.T) {
			requireBackends(t, kt)
			kp := testKeypair(t, kt)

			data, err := kp.Marshal()
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			kp2, err := UnmarshalKeypair(data)
			if err != nil {
				t.Fatalf("UnmarshalKeypair() error = %v", err)
			}
			if !kp2.Public().Equal(kp.Public()) {
				t.Error("decoded keypair has a different public key")
			}

			data2, err := kp2.Marshal()
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if !bytes.Equal(data, data2) {
				t.Error("re-encoding is not byte-identical")
			}

			msg := []byte("round trip")
			sig, err := kp2.Sign(msg)
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}
			if !kp.Public().Verify(msg, sig) {
				t.Error("original public key rejects signature from decoded keypair")
			}
		})
	}
}

// TestRSAEncodingPolicy RSA 私钥不进入密钥记录
func TestRSAEncodingPolicy(t *testing.T) {
	requireBackends(t, KeyTypeRSA)
	kp := testKeypair(t, KeyTypeRSA)

	_, err := kp.Marshal()
	if !errors.Is(err, ErrEncodingUnsupported) {
		t.Fatalf("Marshal() error = %v, want ErrEncodingUnsupported", err)
	}
	var encErr *EncodingError
	if !errors.As(err, &encErr) || encErr.KeyType != KeyTypeRSA {
		t.Errorf("Marshal() error = %#v, want *EncodingError for RSA", err)
	}

	rec := marshalKeyRecord(KeyTypeRSA, []byte{0x30, 0x00})
	if _, err := UnmarshalKeypair(rec); !errors.Is(err, ErrDecodingUnsupported) {
		t.Errorf("UnmarshalKeypair(RSA) error = %v, want ErrDecodingUnsupported", err)
	}

	// 公钥仍可往返
	pub, err := UnmarshalPublicKey(kp.Public().Marshal())
	if err != nil {
		t.Fatalf("UnmarshalPublicKey(RSA) error = %v", err)
	}
	if !pub.Equal(kp.Public()) {
		t.Error("RSA public key round trip mismatch")
	}
}

func TestKeypairDowncast(t *testing.T) {
	requireBackends(t, KeyTypeEd25519)
	kp := testKeypair(t, KeyTypeEd25519)

	ed, err := kp.TryIntoEd25519()
	if err != nil || ed == nil {
		t.Fatalf("TryIntoEd25519() = %v, %v", ed, err)
	}

	_, err = kp.TryIntoSecp256k1()
	var ov *OtherVariantError
	if !errors.As(err, &ov) {
		t.Fatalf("TryIntoSecp256k1() error = %v, want *OtherVariantError", err)
	}
	if ov.Expected != KeyTypeSecp256k1 || ov.Actual != KeyTypeEd25519 {
		t.Errorf("OtherVariantError = %+v", ov)
	}
	if !errors.Is(err, ErrOtherVariant) {
		t.Error("OtherVariantError does not unwrap to ErrOtherVariant")
	}

	if _, err := kp.As(KeyTypeRSA); !errors.Is(err, ErrOtherVariant) {
		t.Errorf("As(RSA) error = %v, want ErrOtherVariant", err)
	}
	v, err := kp.As(KeyTypeEd25519)
	if err != nil || v.Type() != KeyTypeEd25519 {
		t.Errorf("As(Ed25519) = %v, %v", v, err)
	}

	// 从具体私钥重新包装，公钥一致
	kp2, err := NewKeypair(ed)
	if err != nil {
		t.Fatalf("NewKeypair() error = %v", err)
	}
	if !kp2.Public().Equal(kp.Public()) {
		t.Error("NewKeypair(TryIntoEd25519()) changed the public key")
	}
}

func TestNewKeypairNil(t *testing.T) {
	if _, err := NewKeypair(nil); !errors.Is(err, ErrNilKey) {
		t.Errorf("NewKeypair(nil) error = %v, want ErrNilKey", err)
	}
	var typedNil *Ed25519PrivateKey
	if _, err := NewKeypair(typedNil); !errors.Is(err, ErrNilKey) {
		t.Errorf("NewKeypair(typed nil) error = %v, want ErrNilKey", err)
	}
}

func TestKeypairZeroize(t *testing.T) {
	for _, kt := range KeyTypes {
		t.Run(kt.String(), func(t *testing.T) {
			requireBackends(t, kt)
			var kp *Keypair
			if kt == KeyTypeRSA {
				var err error
				if kp, err = GenerateRSA(RSAMinKeySize); err != nil {
					t.Fatalf("GenerateRSA() error = %v", err)
				}
			} else {
				kp = testKeypair(t, kt)
			}
			inner := kp.Variant()

			kp.Zeroize()
			kp.Zeroize()

			if _, err := kp.Sign([]byte("x")); !errors.Is(err, ErrNilKey) {
				t.Errorf("Sign() after Zeroize error = %v, want ErrNilKey", err)
			}
			if _, err := kp.Marshal(); !errors.Is(err, ErrNilKey) {
				t.Errorf("Marshal() after Zeroize error = %v, want ErrNilKey", err)
			}
			if !kp.Public().IsZero() {
				t.Error("Public() after Zeroize is not zero")
			}

			switch k := inner.(type) {
			case *Ed25519PrivateKey:
				if !bytes.Equal(k.k, make([]byte, len(k.k))) {
					t.Error("Ed25519 key material not cleared")
				}
			case *Secp256k1PrivateKey:
				if !k.k.Key.IsZero() {
					t.Error("Secp256k1 scalar not cleared")
				}
			case *ECDSAPrivateKey:
				if k.k.D.Sign() != 0 {
					t.Error("ECDSA scalar not cleared")
				}
			case *RSAPrivateKey:
				if k.sk.D.Sign() != 0 {
					t.Error("RSA private exponent not cleared")
				}
			}
		})
	}
}

// TestKeypairRedaction 格式化输出不泄露密钥材料
func TestKeypairRedaction(t *testing.T) {
	requireBackends(t, KeyTypeSecp256k1)
	kp := testKeypair(t, KeyTypeSecp256k1)
	sk, _ := kp.TryIntoSecp256k1()
	secret := fmt.Sprintf("%x", sk.Bytes())

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("key", "kp", kp, "sk", sk)

	outputs := []string{
		fmt.Sprintf("%v", kp),
		fmt.Sprintf("%+v", kp),
		fmt.Sprintf("%#v", kp),
		fmt.Sprintf("%v", sk),
		fmt.Sprintf("%#v", sk),
		buf.String(),
	}
	for _, out := range outputs {
		if strings.Contains(out, secret) {
			t.Errorf("output leaks secret: %q", out)
		}
	}
	if !strings.Contains(kp.String(), "redacted") {
		t.Errorf("Keypair.String() = %q", kp.String())
	}
}

func TestImportKeypair(t *testing.T) {
	t.Run("Ed25519Seed", func(t *testing.T) {
		requireBackends(t, KeyTypeEd25519)
		seed := make([]byte, Ed25519SeedSize)
		rand.Read(seed)
		want, _ := Ed25519KeyFromSeed(seed)

		kp, err := Ed25519FromBytes(seed)
		if err != nil {
			t.Fatalf("Ed25519FromBytes() error = %v", err)
		}
		if !bytes.Equal(seed, make([]byte, Ed25519SeedSize)) {
			t.Error("Ed25519FromBytes() did not clear its input")
		}
		ed, _ := kp.TryIntoEd25519()
		if !ed.Equal(want) {
			t.Error("Ed25519FromBytes() derived a different key")
		}
	})

	t.Run("Ed25519BadLength", func(t *testing.T) {
		requireBackends(t, KeyTypeEd25519)
		_, err := Ed25519FromBytes(make([]byte, 31))
		if !errors.Is(err, ErrInvalidKeySize) {
			t.Errorf("Ed25519FromBytes(31 bytes) error = %v, want ErrInvalidKeySize", err)
		}
	})

	t.Run("Secp256k1Raw", func(t *testing.T) {
		requireBackends(t, KeyTypeSecp256k1)
		orig := testKeypair(t, KeyTypeSecp256k1)
		sk, _ := orig.TryIntoSecp256k1()

		kp, err := Secp256k1FromBytes(sk.Bytes())
		if err != nil {
			t.Fatalf("Secp256k1FromBytes() error = %v", err)
		}
		if !kp.Public().Equal(orig.Public()) {
			t.Error("Secp256k1FromBytes() public key mismatch")
		}
	})

	t.Run("Secp256k1ZeroScalar", func(t *testing.T) {
		requireBackends(t, KeyTypeSecp256k1)
		_, err := Secp256k1FromBytes(make([]byte, Secp256k1PrivateKeySize))
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Secp256k1FromBytes(zero) error = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("Secp256k1DER", func(t *testing.T) {
		requireBackends(t, KeyTypeSecp256k1)
		orig := testKeypair(t, KeyTypeSecp256k1)
		sk, _ := orig.TryIntoSecp256k1()
		der, err := sk.MarshalDER()
		if err != nil {
			t.Fatalf("MarshalDER() error = %v", err)
		}

		kp, err := Secp256k1FromDER(der)
		if err != nil {
			t.Fatalf("Secp256k1FromDER() error = %v", err)
		}
		if !kp.Public().Equal(orig.Public()) {
			t.Error("Secp256k1FromDER() public key mismatch")
		}
		if !bytes.Equal(der, make([]byte, len(der))) {
			t.Error("Secp256k1FromDER() did not clear its input")
		}
	})

	t.Run("ECDSADER", func(t *testing.T) {
		requireBackends(t, KeyTypeECDSA)
		orig := testKeypair(t, KeyTypeECDSA)
		sk, _ := orig.TryIntoECDSA()
		der, _ := sk.MarshalDER()

		kp, err := ECDSAFromDER(der)
		if err != nil {
			t.Fatalf("ECDSAFromDER() error = %v", err)
		}
		if !kp.Public().Equal(orig.Public()) {
			t.Error("ECDSAFromDER() public key mismatch")
		}
	})

	t.Run("RSAPKCS8", func(t *testing.T) {
		requireBackends(t, KeyTypeRSA)
		sk := testRSAKey(t)
		der, err := sk.MarshalPKCS8()
		if err != nil {
			t.Fatalf("MarshalPKCS8() error = %v", err)
		}

		kp, err := RSAFromPKCS8(der)
		if err != nil {
			t.Fatalf("RSAFromPKCS8() error = %v", err)
		}
		if !kp.Public().Equal(PublicKey{inner: sk.Public()}) {
			t.Error("RSAFromPKCS8() public key mismatch")
		}
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		requireBackends(t, KeyTypeRSA)
		_, err := ImportKeypair(KeyTypeRSA, FormatRaw, []byte{1, 2, 3})
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("ImportKeypair(RSA, raw) error = %v, want ErrUnsupportedFormat", err)
		}
	})
}

// TestMissingFeature 关闭的后端返回 ErrMissingFeature
func TestMissingFeature(t *testing.T) {
	requireBackends(t, KeyTypeSecp256k1)
	kp := testKeypair(t, KeyTypeSecp256k1)
	privRec, _ := kp.Marshal()
	pubRec := kp.Public().Marshal()

	disableBackend(t, KeyTypeSecp256k1)

	if _, err := GenerateKeypair(KeyTypeSecp256k1); !errors.Is(err, ErrMissingFeature) {
		t.Errorf("GenerateKeypair() error = %v, want ErrMissingFeature", err)
	}

	_, err := UnmarshalPublicKey(pubRec)
	if !errors.Is(err, ErrMissingFeature) {
		t.Fatalf("UnmarshalPublicKey() error = %v, want ErrMissingFeature", err)
	}
	var de *DecodingError
	if !errors.As(err, &de) || de.KeyType != KeyTypeSecp256k1 {
		t.Errorf("UnmarshalPublicKey() error = %#v, want *DecodingError naming Secp256k1", err)
	}
	if !strings.Contains(err.Error(), "secp256k1") {
		t.Errorf("error %q does not name the disabled feature", err)
	}

	if _, err := UnmarshalKeypair(privRec); !errors.Is(err, ErrMissingFeature) {
		t.Errorf("UnmarshalKeypair() error = %v, want ErrMissingFeature", err)
	}
	if _, err := Secp256k1FromBytes(make([]byte, 32)); !errors.Is(err, ErrMissingFeature) {
		t.Errorf("Secp256k1FromBytes() error = %v, want ErrMissingFeature", err)
	}

	// 其他后端不受影响
	if Enabled(KeyTypeEd25519) {
		if _, err := GenerateKeypair(KeyTypeEd25519); err != nil {
			t.Errorf("GenerateKeypair(Ed25519) error = %v", err)
		}
	}
	for _, kt := range EnabledKeyTypes() {
		if kt == KeyTypeSecp256k1 {
			t.Error("EnabledKeyTypes() still lists Secp256k1")
		}
	}
}

// TestKeypairConcurrentSign 同一密钥对可并发签名
func TestKeypairConcurrentSign(t *testing.T) {
	requireBackends(t, KeyTypeEd25519)
	kp := testKeypair(t, KeyTypeEd25519)
	pub := kp.Public()

	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func(i int) {
			msg := []byte(fmt.Sprintf("msg-%d", i))
			sig, err := kp.Sign(msg)
			if err == nil && !pub.Verify(msg, sig) {
				err = fmt.Errorf("signature %d rejected", i)
			}
			errs <- err
		}(i)
	}
	for i := 0; i < 16; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

// TestRSAPrivateRecordWithoutBackend RSA 私钥记录不论构建配置均不支持解码
func TestRSAPrivateRecordWithoutBackend(t *testing.T) {
	disableBackend(t, KeyTypeRSA)

	_, err := UnmarshalKeypair(marshalKeyRecord(KeyTypeRSA, []byte{0x30, 0x00}))
	if !errors.Is(err, ErrDecodingUnsupported) {
		t.Errorf("UnmarshalKeypair(RSA) error = %v, want ErrDecodingUnsupported", err)
	}
	if errors.Is(err, ErrMissingFeature) {
		t.Errorf("UnmarshalKeypair(RSA) error = %v, should not report a missing feature", err)
	}
}

// TestKeypairConcurrentZeroize 并发签名与清零
func TestKeypairConcurrentZeroize(t *testing.T) {
	requireBackends(t, KeyTypeEd25519)
	kp := testKeypair(t, KeyTypeEd25519)
	pub := kp.Public()
	msg := []byte("concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sig, err := kp.Sign(msg)
				if err != nil {
					if !errors.Is(err, ErrNilKey) {
						t.Errorf("Sign() error = %v, want nil or ErrNilKey", err)
					}
					return
				}
				if !pub.Verify(msg, sig) {
					t.Error("signature produced during zeroize does not verify")
					return
				}
				_ = kp.Type()
				_ = kp.String()
			}
		}()
	}
	kp.Zeroize()
	wg.Wait()

	if kp.Type() != -1 {
		t.Errorf("Type() after Zeroize = %d, want -1", kp.Type())
	}
	if _, err := kp.Sign(msg); !errors.Is(err, ErrNilKey) {
		t.Errorf("Sign() after Zeroize error = %v, want ErrNilKey", err)
	}
}
