package crypto

import (
	"bytes"
	"errors"
	"testing"
)

const testDomain = "dep2p-test-record"

func TestSealAndConsume(t *testing.T) {
	for _, kt := range []KeyType{KeyTypeEd25519, KeyTypeSecp256k1, KeyTypeECDSA, KeyTypeRSA} {
		t.Run(kt.String(), func(t *testing.T) {
			requireBackends(t, kt)
			kp := testKeypair(t, kt)
			payloadType := []byte("/dep2p/test")
			payload := []byte("hello envelope")

			env, err := Seal(kp, testDomain, payloadType, payload)
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}

			data, err := env.Marshal()
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			got, err := ConsumeEnvelope(data, testDomain)
			if err != nil {
				t.Fatalf("ConsumeEnvelope() error = %v", err)
			}
			if !got.Equal(env) {
				t.Error("decoded envelope differs")
			}

			contents, err := got.Open(testDomain)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if !bytes.Equal(contents, payload) {
				t.Errorf("Open() = %q, want %q", contents, payload)
			}
		})
	}
}

func TestEnvelopeRejects(t *testing.T) {
	requireBackends(t, KeyTypeEd25519)
	kp := testKeypair(t, KeyTypeEd25519)

	env, err := Seal(kp, testDomain, []byte("t"), []byte("payload"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	t.Run("WrongDomain", func(t *testing.T) {
		if err := env.Verify("other-domain"); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Verify(other domain) error = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("EmptyDomain", func(t *testing.T) {
		if _, err := Seal(kp, "", nil, nil); !errors.Is(err, ErrEmptyDomain) {
			t.Errorf("Seal(empty domain) error = %v, want ErrEmptyDomain", err)
		}
	})

	t.Run("TamperedPayload", func(t *testing.T) {
		bad := *env
		bad.Payload = []byte("payloaD")
		if _, err := bad.Open(testDomain); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Open(tampered) error = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("BoundaryShift", func(t *testing.T) {
		// 长度前缀防止在 payloadType 和 payload 之间移动字节
		bad := *env
		bad.PayloadType = []byte("tp")
		bad.Payload = []byte("ayload")
		if err := bad.Verify(testDomain); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Verify(shifted) error = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("SwappedKey", func(t *testing.T) {
		bad := *env
		bad.PublicKey = testKeypair(t, KeyTypeEd25519).Public()
		data, _ := bad.Marshal()
		if _, err := ConsumeEnvelope(data, testDomain); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("ConsumeEnvelope(swapped key) error = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		if _, err := UnmarshalEnvelope([]byte{0x0a, 0x05, 0x01}); !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("UnmarshalEnvelope(truncated) error = %v, want ErrMalformedEnvelope", err)
		}
		if _, err := UnmarshalEnvelope(nil); !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("UnmarshalEnvelope(nil) error = %v, want ErrMalformedEnvelope", err)
		}
	})
}
