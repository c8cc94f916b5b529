package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing!!"

func TestGenerateAndParseAccessToken(t *testing.T) {
	token, issued, err := GenerateAccessToken("ci-pipeline", RoleOperator, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if token == "" || issued.ID == "" {
		t.Fatal("GenerateAccessToken() returned empty token or jti")
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if claims.Subject != "ci-pipeline" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "ci-pipeline")
	}
	if claims.Role != RoleOperator {
		t.Errorf("Role = %q, want %q", claims.Role, RoleOperator)
	}
	if claims.ID != issued.ID {
		t.Errorf("ID = %q, want %q", claims.ID, issued.ID)
	}
	if ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}
}

func TestGenerateAccessToken_DefaultTTL(t *testing.T) {
	_, claims, err := GenerateAccessToken("svc", RoleViewer, testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time); ttl != DefaultTokenTTL {
		t.Errorf("TTL = %v, want %v", ttl, DefaultTokenTTL)
	}
}

func TestGenerateAccessToken_Rejects(t *testing.T) {
	if _, _, err := GenerateAccessToken("", RoleAdmin, testSecret, time.Hour); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("empty subject error = %v, want ErrTokenInvalid", err)
	}
	if _, _, err := GenerateAccessToken("svc", Role("owner"), testSecret, time.Hour); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("unknown role error = %v, want ErrInvalidRole", err)
	}
}

func TestClaims_Record(t *testing.T) {
	_, claims, err := GenerateAccessToken("svc", RoleAdmin, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	rec := claims.Record()
	if rec.ID != claims.ID || rec.Subject != "svc" || rec.Role != RoleAdmin {
		t.Errorf("Record() = %+v", rec)
	}
	if !rec.ExpiresAt.Equal(claims.ExpiresAt.Time) || !rec.CreatedAt.Equal(claims.IssuedAt.Time) {
		t.Errorf("Record() times = %v / %v", rec.CreatedAt, rec.ExpiresAt)
	}
	if !rec.Active(time.Now()) {
		t.Error("fresh record not active")
	}
}

// signRaw signs arbitrary claims for negative tests.
func signRaw(t *testing.T, method jwt.SigningMethod, claims jwt.Claims, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return s
}

// tamper changes one character inside the signature.
func tamper(token string) string {
	i := strings.LastIndex(token, ".") + 3
	c := byte('A')
	if token[i] == 'A' {
		c = 'B'
	}
	return token[:i] + string(c) + token[i+1:]
}

func TestParseToken_Invalid(t *testing.T) {
	now := time.Now()
	valid := func(sub string, role Role) CustomClaims {
		return CustomClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   sub,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			Role: role,
		}
	}
	expired := valid("svc", RoleAdmin)
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))

	good, _, err := GenerateAccessToken("svc", RoleAdmin, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-valid-jwt"},
		{"wrong secret", signRaw(t, jwt.SigningMethodHS256, valid("svc", RoleAdmin), []byte("another-secret"))},
		{"expired", signRaw(t, jwt.SigningMethodHS256, expired, []byte(testSecret))},
		{"missing subject", signRaw(t, jwt.SigningMethodHS256, valid("", RoleAdmin), []byte(testSecret))},
		{"unknown role", signRaw(t, jwt.SigningMethodHS256, valid("svc", "root"), []byte(testSecret))},
		{"wrong algorithm", signRaw(t, jwt.SigningMethodHS512, valid("svc", RoleAdmin), []byte(testSecret))},
		{"none algorithm", signRaw(t, jwt.SigningMethodNone, valid("svc", RoleAdmin), jwt.UnsafeAllowNoneSignatureType)},
		{"tampered", tamper(good)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, testSecret)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}
