package http

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"roomchat/internal/config"
	"roomchat/internal/filter"
	"roomchat/internal/log"
	"roomchat/internal/store"
	"roomchat/internal/store/snapshot"
)

const testAdminSecret = "test-admin-secret"

// newTestRouter builds a router over an in-memory store with admin access
// enabled for testAdminSecret.
func newTestRouter(t *testing.T, mutate func(cfg *config.Config)) (*gin.Engine, store.Store) {
	t.Helper()

	st, err := snapshot.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminSecret), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.AdminSecretHash = string(hash)
	if mutate != nil {
		mutate(&cfg)
	}

	masker := filter.New(cfg.BlockedWords)
	return NewRouter(st, masker, &cfg, log.Nop()), st
}

// doJSON performs a request with an optional JSON body and decodes the
// response into out when it is non-nil.
func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any, headers map[string]string, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func adminHeaders() map[string]string {
	return map[string]string{AdminSecretHeader: testAdminSecret}
}
