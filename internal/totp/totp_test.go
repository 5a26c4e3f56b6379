package totp

import (
	"bytes"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	pqtotp "github.com/pquerna/otp/totp"
)

// base32 of the ASCII seed "12345678901234567890" used by RFC 6238 Appendix B.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestDigitsFromInt(t *testing.T) {
	if got := DigitsFromInt(6); got != otp.DigitsSix {
		t.Errorf("DigitsFromInt(6) = %v, want DigitsSix", got)
	}
	if got := DigitsFromInt(8); got != otp.DigitsEight {
		t.Errorf("DigitsFromInt(8) = %v, want DigitsEight", got)
	}
	if got := DigitsFromInt(7); got != otp.DigitsSix {
		t.Errorf("DigitsFromInt(7) = %v, want DigitsSix (default)", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("TestIssuer")
	if cfg.Issuer != "TestIssuer" {
		t.Errorf("Issuer = %q, want TestIssuer", cfg.Issuer)
	}
	if cfg.Period != 30 {
		t.Errorf("Period = %d, want 30", cfg.Period)
	}
	if cfg.Digits != otp.DigitsSix {
		t.Errorf("Digits = %v, want DigitsSix", cfg.Digits)
	}
	if cfg.Algo != otp.AlgorithmSHA1 {
		t.Errorf("Algo = %v, want AlgorithmSHA1", cfg.Algo)
	}
	if cfg.Skew != 1 {
		t.Errorf("Skew = %d, want 1", cfg.Skew)
	}
	if cfg.SecretSize != 20 {
		t.Errorf("SecretSize = %d, want 20", cfg.SecretSize)
	}
}

func TestNew_Normalizes(t *testing.T) {
	e := New(Config{Issuer: "X", Digits: otp.Digits(7), SecretSize: 4})
	cfg := e.Config()
	if cfg.Period != 30 {
		t.Errorf("Period = %d, want 30", cfg.Period)
	}
	if cfg.Digits != otp.DigitsSix {
		t.Errorf("Digits = %v, want DigitsSix", cfg.Digits)
	}
	if cfg.SecretSize != 20 {
		t.Errorf("SecretSize = %d, want 20 (minimum 160 bits)", cfg.SecretSize)
	}
}

func TestGenerateSecret(t *testing.T) {
	e := New(DefaultConfig("TestIssuer"))
	s1, err := e.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	// 20 bytes -> 32 base32 chars, no padding
	if len(s1) != 32 {
		t.Errorf("len(secret) = %d, want 32", len(s1))
	}
	if strings.Contains(s1, "=") {
		t.Errorf("secret %q contains padding", s1)
	}
	raw, err := b32NoPadding.DecodeString(s1)
	if err != nil || len(raw) != 20 {
		t.Errorf("decode secret: len=%d err=%v", len(raw), err)
	}
	s2, _ := e.GenerateSecret()
	if s1 == s2 {
		t.Error("GenerateSecret should produce unique secrets")
	}
}

func TestGenerateSecret_ReaderFailure(t *testing.T) {
	e := New(DefaultConfig("TestIssuer"))
	e.rand = bytes.NewReader([]byte{1, 2, 3})
	if _, err := e.GenerateSecret(); err == nil {
		t.Error("GenerateSecret with short reader should error")
	}
}

func TestCodeAt_RFC6238Vectors(t *testing.T) {
	cases := []struct {
		unix  int64
		six   string
		eight string
	}{
		{59, "287082", "94287082"},
		{1111111109, "081804", "07081804"},
		{1111111111, "050471", "14050471"},
		{1234567890, "005924", "89005924"},
		{2000000000, "279037", "69279037"},
		{20000000000, "353130", "65353130"},
	}
	six := New(DefaultConfig("RFC"))
	cfg8 := DefaultConfig("RFC")
	cfg8.Digits = otp.DigitsEight
	eight := New(cfg8)
	for _, tc := range cases {
		at := time.Unix(tc.unix, 0)
		got, err := six.CodeAt(rfcSecret, at)
		if err != nil {
			t.Fatalf("CodeAt(%d): %v", tc.unix, err)
		}
		if got != tc.six {
			t.Errorf("CodeAt(%d) = %s, want %s", tc.unix, got, tc.six)
		}
		got, _ = eight.CodeAt(rfcSecret, at)
		if got != tc.eight {
			t.Errorf("CodeAt8(%d) = %s, want %s", tc.unix, got, tc.eight)
		}
	}
}

func TestDeriveCode_Deterministic(t *testing.T) {
	e := New(DefaultConfig("TestIssuer"))
	a, _ := e.DeriveCode(rfcSecret, 12345)
	b, _ := e.DeriveCode(rfcSecret, 12345)
	if a != b {
		t.Errorf("DeriveCode not deterministic: %s != %s", a, b)
	}
	other, _ := e.GenerateSecret()
	c, _ := e.DeriveCode(other, 12345)
	d, _ := e.DeriveCode(other, 12346)
	if a == c && c == d {
		t.Error("different secrets and counters should not collapse to one code")
	}
}

func TestDeriveCode_InvalidSecret(t *testing.T) {
	e := New(DefaultConfig("TestIssuer"))
	if _, err := e.DeriveCode("", 1); err == nil {
		t.Error("DeriveCode(empty) should error")
	}
	if _, err := e.DeriveCode("not base32!!", 1); err == nil {
		t.Error("DeriveCode(invalid base32) should error")
	}
}

func TestVerifyCode_RoundTrip(t *testing.T) {
	e := New(DefaultConfig("TestIssuer"))
	for i := 0; i < 20; i++ {
		secret, err := e.GenerateSecret()
		if err != nil {
			t.Fatalf("GenerateSecret: %v", err)
		}
		now := time.Unix(1_700_000_000+int64(i)*7919, 0)
		code, err := e.CodeAt(secret, now)
		if err != nil {
			t.Fatalf("CodeAt: %v", err)
		}
		ok, err := e.VerifyCode(secret, code, now)
		if err != nil {
			t.Fatalf("VerifyCode: %v", err)
		}
		if !ok {
			t.Errorf("VerifyCode(CodeAt(now), now) = false for secret %d", i)
		}
	}
}

func TestVerifyCode_MatchesLibrary(t *testing.T) {
	e := New(DefaultConfig("TestIssuer"))
	secret, _ := e.GenerateSecret()
	now := time.Now()
	code, err := pqtotp.GenerateCodeCustom(secret, now, pqtotp.ValidateOpts{
		Period: 30, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	ok, err := e.VerifyCode(secret, code, now)
	if err != nil || !ok {
		t.Errorf("VerifyCode(library code) = %v, %v; want true", ok, err)
	}
}

func TestVerifyCode_SkewWindow(t *testing.T) {
	e := New(DefaultConfig("TestIssuer"))
	now := time.Unix(1111111111, 0)
	for _, n := range []int64{-1, 0, 1} {
		code, _ := e.CodeAt(rfcSecret, now.Add(time.Duration(n)*30*time.Second))
		ok, _ := e.VerifyCode(rfcSecret, code, now)
		if !ok {
			t.Errorf("code at step offset %d rejected, want accepted", n)
		}
	}
	current, _ := e.CodeAt(rfcSecret, now)
	for _, n := range []int64{-3, -2, 2, 3, 10} {
		code, _ := e.CodeAt(rfcSecret, now.Add(time.Duration(n)*30*time.Second))
		if code == current {
			continue
		}
		ok, _ := e.VerifyCode(rfcSecret, code, now)
		if ok {
			t.Errorf("code at step offset %d accepted, want rejected", n)
		}
	}
}

func TestVerifyCode_Malformed(t *testing.T) {
	e := New(DefaultConfig("TestIssuer"))
	now := time.Unix(59, 0)
	for _, code := range []string{"", "28708", "2870820", "28708a", " 287082", "２８７０８２", "-28708", "94287082"} {
		ok, err := e.VerifyCode(rfcSecret, code, now)
		if err != nil {
			t.Errorf("VerifyCode(%q) err = %v, want nil", code, err)
		}
		if ok {
			t.Errorf("VerifyCode(%q) = true, want false", code)
		}
	}
	// Malformed codes are rejected before the secret is touched.
	ok, err := e.VerifyCode("not base32!!", "abc", now)
	if ok || err != nil {
		t.Errorf("VerifyCode(bad secret, malformed) = %v, %v; want false, nil", ok, err)
	}
}

func TestVerifyCode_InvalidSecret(t *testing.T) {
	e := New(DefaultConfig("TestIssuer"))
	if _, err := e.VerifyCode("not base32!!", "123456", time.Now()); err == nil {
		t.Error("VerifyCode with undecodable secret should error")
	}
}

func TestVerifyCode_NearEpoch(t *testing.T) {
	e := New(DefaultConfig("TestIssuer"))
	now := time.Unix(10, 0)
	code, _ := e.CodeAt(rfcSecret, now)
	ok, err := e.VerifyCode(rfcSecret, code, now)
	if err != nil || !ok {
		t.Errorf("VerifyCode at step 0 = %v, %v; want true", ok, err)
	}
}

func TestProvisioningURI(t *testing.T) {
	e := New(DefaultConfig("MyApp"))
	uri, err := e.ProvisioningURI(rfcSecret, "alice", "")
	if err != nil {
		t.Fatalf("ProvisioningURI: %v", err)
	}
	u, err := url.Parse(uri)
	if err != nil {
		t.Fatalf("parse %q: %v", uri, err)
	}
	if u.Scheme != "otpauth" || u.Host != "totp" {
		t.Errorf("uri = %q, want otpauth://totp/...", uri)
	}
	if !strings.Contains(u.Path, "MyApp:alice") {
		t.Errorf("path = %q, want label MyApp:alice", u.Path)
	}
	q := u.Query()
	if q.Get("secret") != rfcSecret {
		t.Errorf("secret = %q, want %q", q.Get("secret"), rfcSecret)
	}
	if q.Get("issuer") != "MyApp" || q.Get("digits") != "6" || q.Get("period") != "30" || q.Get("algorithm") != "SHA1" {
		t.Errorf("query = %v", q)
	}

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		t.Fatalf("NewKeyFromURL: %v", err)
	}
	if key.AccountName() != "alice" || key.Issuer() != "MyApp" {
		t.Errorf("key account=%q issuer=%q", key.AccountName(), key.Issuer())
	}

	other, _ := e.ProvisioningURI(rfcSecret, "alice", "Other")
	if !strings.Contains(other, "issuer=Other") {
		t.Errorf("explicit issuer not used: %q", other)
	}
}

func TestProvisioningURI_Errors(t *testing.T) {
	e := New(DefaultConfig("MyApp"))
	if _, err := e.ProvisioningURI("", "alice", ""); err == nil {
		t.Error("empty secret should error")
	}
	if _, err := e.ProvisioningURI("!!!", "alice", ""); err == nil {
		t.Error("invalid secret should error")
	}
	if _, err := e.ProvisioningURI(rfcSecret, "", ""); err == nil {
		t.Error("empty account should error")
	}
}

func TestTimeStep(t *testing.T) {
	epoch := time.Unix(0, 0)
	if got := TimeStep(epoch, 30); got != 0 {
		t.Errorf("TimeStep(epoch, 30) = %d, want 0", got)
	}
	t90 := time.Unix(90, 0)
	if got := TimeStep(t90, 30); got != 3 {
		t.Errorf("TimeStep(90s, 30) = %d, want 3", got)
	}
	if got := TimeStep(time.Unix(89, 0), 30); got != 2 {
		t.Errorf("TimeStep(89s, 30) = %d, want 2 (floor, not round)", got)
	}
	if got := TimeStep(time.Unix(-1, 0), 30); got != -1 {
		t.Errorf("TimeStep(-1s, 30) = %d, want -1", got)
	}
}
