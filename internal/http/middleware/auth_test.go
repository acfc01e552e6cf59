package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const authTestSecret = "0123456789abcdef0123456789abcdef"

func mintToken(t *testing.T, secret, subject, role string, ttl time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, authClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(secret))
	r.GET("/whoami", func(c *gin.Context) {
		uid, _ := c.Get(ctxKeyUserID)
		c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": RoleFrom(c)})
	})
	return r
}

func doAuth(r *gin.Engine, header string) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestAuthenticate_ValidToken(t *testing.T) {
	r := authRouter(authTestSecret)
	tok := mintToken(t, authTestSecret, "mod-1", RoleModerator, time.Hour)

	w, body := doAuth(r, "Bearer "+tok)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if body["user_id"] != "mod-1" || body["role"] != RoleModerator {
		t.Fatalf("identity = %v", body)
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	r := authRouter(authTestSecret)

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong key", "Bearer " + mintToken(t, "another-secret-another-secret-xx", "u1", RoleUser, time.Hour)},
		{"expired", "Bearer " + mintToken(t, authTestSecret, "u1", RoleUser, -time.Minute)},
		{"empty subject", "Bearer " + mintToken(t, authTestSecret, "", RoleUser, time.Hour)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := doAuth(r, tc.header)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			if body["code"] != "unauthorized" {
				t.Fatalf("body = %v", body)
			}
		})
	}
}

func TestAuthenticate_UnknownRoleDemotes(t *testing.T) {
	r := authRouter(authTestSecret)
	tok := mintToken(t, authTestSecret, "u1", "superuser", time.Hour)

	w, body := doAuth(r, "Bearer "+tok)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["role"] != RoleUser {
		t.Fatalf("role = %v, want demotion to user", body["role"])
	}
}

func TestAuthenticate_DemoMode(t *testing.T) {
	r := authRouter("")

	// Identity from the demo header, always role user.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "dev-1")
	r.ServeHTTP(w, req)
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if w.Code != http.StatusOK || body["user_id"] != "dev-1" || body["role"] != RoleUser {
		t.Fatalf("demo identity = %d %v", w.Code, body)
	}

	// No header at all still passes, as anonymous.
	w2, body2 := doAuth(r, "")
	if w2.Code != http.StatusOK || body2["user_id"] != "anonymous" {
		t.Fatalf("anonymous = %d %v", w2.Code, body2)
	}
}

func TestRequireRole_Hierarchy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(authTestSecret))
	r.GET("/queue", RequireRole(RoleModerator), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := []struct {
		role string
		want int
	}{
		{RoleUser, http.StatusForbidden},
		{RoleModerator, http.StatusOK},
		{RoleSupervisor, http.StatusOK},
		{RoleAdmin, http.StatusOK},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/queue", nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, authTestSecret, "u1", tc.role, time.Hour))
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("role %s = %d, want %d", tc.role, w.Code, tc.want)
		}
		if tc.want == http.StatusForbidden {
			var body map[string]any
			_ = json.Unmarshal(w.Body.Bytes(), &body)
			if body["code"] != "forbidden" {
				t.Fatalf("body = %v", body)
			}
		}
	}
}

func TestRoleFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if got := RoleFrom(c); got != RoleUser {
		t.Fatalf("RoleFrom without identity = %q", got)
	}
	c.Set(ctxKeyRole, RoleSupervisor)
	if got := RoleFrom(c); got != RoleSupervisor {
		t.Fatalf("RoleFrom = %q", got)
	}
}
