package cryptokey

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	hash := []byte("0123456789abcdef0123456789abcdef01234567890123456789abcdef0123")[:32]
	sig := priv.Sign(hash)

	pub, err := AddressFromHex(priv.Address())
	if err != nil {
		t.Fatalf("AddressFromHex: %v", err)
	}
	if !pub.Verify(hash, sig) {
		t.Fatal("signature should verify against the signer's own address")
	}
}

func TestVerifyRejectsTamperedHash(t *testing.T) {
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	hash := make([]byte, 32)
	copy(hash, []byte("message-one"))
	sig := priv.Sign(hash)

	tampered := make([]byte, 32)
	copy(tampered, []byte("message-two"))

	pub := priv.PubKey()
	if pub.Verify(tampered, sig) {
		t.Fatal("signature should not verify against a different hash")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	priv1, _ := GeneratePrivateKey()
	priv2, _ := GeneratePrivateKey()
	hash := make([]byte, 32)
	copy(hash, []byte("payload"))
	sig := priv1.Sign(hash)

	if priv2.PubKey().Verify(hash, sig) {
		t.Fatal("signature should not verify against an unrelated public key")
	}
}

func TestAddressFromHexRejectsGarbage(t *testing.T) {
	if _, err := AddressFromHex("not-hex"); err == nil {
		t.Fatal("expected error for non-hex address")
	}
	if _, err := AddressFromHex("deadbeef"); err == nil {
		t.Fatal("expected error for hex that isn't a valid compressed pubkey")
	}
}

func TestPrivateKeyFromHexRoundTrip(t *testing.T) {
	priv, _ := GeneratePrivateKey()
	hexKey := priv.Hex()
	restored, err := PrivateKeyFromHex(hexKey)
	if err != nil {
		t.Fatalf("PrivateKeyFromHex: %v", err)
	}
	if restored.Address() != priv.Address() {
		t.Fatal("restored key should derive the same address")
	}
}
