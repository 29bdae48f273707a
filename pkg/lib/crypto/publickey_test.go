package crypto

import (
	"bytes"
	"errors"
	"sort"
	"testing"
)

func TestPublicKeyRoundTrip(t *testing.T) {
	for _, kt := range KeyTypes {
		t.Run(kt.String(), func(t *testing.T) {
			requireBackends(t, kt)
			pub := testKeypair(t, kt).Public()

			data := pub.Marshal()
			if data[0] != 0x08 || KeyType(data[1]) != kt {
				t.Errorf("Marshal() header = %x, want 08%02x", data[:2], int(kt))
			}

			pub2, err := UnmarshalPublicKey(data)
			if err != nil {
				t.Fatalf("UnmarshalPublicKey() error = %v", err)
			}
			if !pub.Equal(pub2) {
				t.Error("decoded public key differs")
			}
			if !bytes.Equal(pub2.Marshal(), data) {
				t.Error("re-encoding is not byte-identical")
			}
			if pub.Hash() != pub2.Hash() {
				t.Error("Hash() differs for equal keys")
			}
			if pub.MapKey() != pub2.MapKey() {
				t.Error("MapKey() differs for equal keys")
			}
			if pub.Compare(pub2) != 0 {
				t.Error("Compare() != 0 for equal keys")
			}

			raw, err := UnmarshalPublicKeyData(kt, pub.Raw())
			if err != nil {
				t.Fatalf("UnmarshalPublicKeyData() error = %v", err)
			}
			if !raw.Equal(pub) {
				t.Error("UnmarshalPublicKeyData() differs")
			}
		})
	}
}

func TestPublicKeyZeroValue(t *testing.T) {
	var zero PublicKey
	if !zero.IsZero() {
		t.Error("IsZero() = false for zero value")
	}
	if zero.Verify([]byte("m"), []byte("s")) {
		t.Error("zero value verified a signature")
	}
	if zero.Marshal() != nil {
		t.Error("zero value Marshal() != nil")
	}
	if !zero.Equal(PublicKey{}) {
		t.Error("zero values not equal")
	}
	if _, err := zero.TryIntoEd25519(); !errors.Is(err, ErrNilKey) {
		t.Errorf("TryIntoEd25519() error = %v, want ErrNilKey", err)
	}
	if _, err := NewPublicKey(nil); !errors.Is(err, ErrNilKey) {
		t.Errorf("NewPublicKey(nil) error = %v, want ErrNilKey", err)
	}
}

func TestPublicKeyDowncast(t *testing.T) {
	requireBackends(t, KeyTypeECDSA)
	pub := testKeypair(t, KeyTypeECDSA).Public()

	ec, err := pub.TryIntoECDSA()
	if err != nil {
		t.Fatalf("TryIntoECDSA() error = %v", err)
	}
	if ec.Key().Curve != ecdsaCurve {
		t.Error("ECDSA public key is not P-256")
	}

	_, err = pub.TryIntoRSA()
	var ov *OtherVariantError
	if !errors.As(err, &ov) || ov.Expected != KeyTypeRSA || ov.Actual != KeyTypeECDSA {
		t.Errorf("TryIntoRSA() error = %v, want OtherVariantError{RSA, ECDSA}", err)
	}

	wrapped, err := NewPublicKey(ec)
	if err != nil {
		t.Fatalf("NewPublicKey() error = %v", err)
	}
	if !wrapped.Equal(pub) {
		t.Error("NewPublicKey(TryIntoECDSA()) changed the key")
	}
}

// TestPublicKeyOrdering 全序：先按类型，再按原生编码
func TestPublicKeyOrdering(t *testing.T) {
	var keys []PublicKey
	for _, kt := range KeyTypes {
		if !Enabled(kt) {
			continue
		}
		n := 3
		if kt == KeyTypeRSA {
			// RSA 只有一个共享密钥
			n = 1
		}
		for i := 0; i < n; i++ {
			keys = append(keys, testKeypair(t, kt).Public())
		}
	}
	keys = append(keys, PublicKey{})

	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })

	if !keys[0].IsZero() {
		t.Error("zero value does not sort first")
	}
	for i := 1; i < len(keys)-1; i++ {
		a, b := keys[i], keys[i+1]
		if a.Type() > b.Type() {
			t.Errorf("keys[%d] type %s sorts after %s", i, a.Type(), b.Type())
		}
		if a.Type() == b.Type() && bytes.Compare(a.Raw(), b.Raw()) > 0 {
			t.Errorf("keys[%d] raw bytes out of order", i)
		}
		// 反对称
		if a.Compare(b) != -b.Compare(a) {
			t.Errorf("Compare() not antisymmetric at %d", i)
		}
	}
}

func TestPublicKeyEqualAcrossTypes(t *testing.T) {
	requireBackends(t, KeyTypeEd25519, KeyTypeSecp256k1)
	a := testKeypair(t, KeyTypeEd25519).Public()
	b := testKeypair(t, KeyTypeSecp256k1).Public()

	if a.Equal(b) {
		t.Error("keys of different types compare equal")
	}
	if a.Compare(b) >= 0 {
		t.Error("Ed25519 does not sort before Secp256k1")
	}
	if a.MapKey() == b.MapKey() {
		t.Error("MapKey() collides across types")
	}

	m := map[string]PublicKey{a.MapKey(): a, b.MapKey(): b}
	if got := m[a.MapKey()]; !got.Equal(a) {
		t.Error("map lookup by MapKey() failed")
	}
}

// TestSecp256k1UncompressedNormalized 未压缩公钥解码后按压缩格式编码
func TestSecp256k1UncompressedNormalized(t *testing.T) {
	requireBackends(t, KeyTypeSecp256k1)
	pub := testKeypair(t, KeyTypeSecp256k1).Public()
	sp, _ := pub.TryIntoSecp256k1()

	decoded, err := UnmarshalPublicKeyData(KeyTypeSecp256k1, sp.Uncompressed())
	if err != nil {
		t.Fatalf("UnmarshalPublicKeyData(uncompressed) error = %v", err)
	}
	if !decoded.Equal(pub) {
		t.Error("uncompressed and compressed forms are not equal")
	}
	if len(decoded.Raw()) != Secp256k1PublicKeySize {
		t.Errorf("Raw() len = %d, want %d", len(decoded.Raw()), Secp256k1PublicKeySize)
	}
}

func TestPublicKeyInvalidData(t *testing.T) {
	tests := []struct {
		name string
		kt   KeyType
		data []byte
		want error
	}{
		{"Ed25519Short", KeyTypeEd25519, make([]byte, 31), ErrInvalidKeySize},
		{"Ed25519NotOnCurve", KeyTypeEd25519, append([]byte{0x02}, make([]byte, 31)...), ErrInvalidKey},
		{"Secp256k1BadLen", KeyTypeSecp256k1, make([]byte, 20), ErrInvalidKeySize},
		{"Secp256k1NotOnCurve", KeyTypeSecp256k1, append([]byte{0x02}, bytes.Repeat([]byte{0xff}, 32)...), ErrInvalidKey},
		{"ECDSAGarbage", KeyTypeECDSA, []byte{0x30, 0x03, 0x02, 0x01, 0x01}, ErrInvalidKey},
		{"RSAGarbage", KeyTypeRSA, []byte{0x01, 0x02}, ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireBackends(t, tt.kt)
			_, err := UnmarshalPublicKey(marshalKeyRecord(tt.kt, tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("UnmarshalPublicKey() error = %v, want %v", err, tt.want)
			}
			var de *DecodingError
			if !errors.As(err, &de) {
				t.Errorf("error %T is not *DecodingError", err)
			}
		})
	}
}
