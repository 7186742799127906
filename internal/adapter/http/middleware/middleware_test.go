package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAPIUserRepo struct {
	users map[string]*domain.APIUser
}

func (r *fakeAPIUserRepo) Create(ctx context.Context, u *domain.APIUser) error {
	r.users[u.Username] = u
	return nil
}

func (r *fakeAPIUserRepo) GetByUsername(ctx context.Context, username string) (*domain.APIUser, error) {
	return r.users[username], nil
}

func TestBasicAuth_MissingCredentials(t *testing.T) {
	repo := &fakeAPIUserRepo{users: map[string]*domain.APIUser{}}
	hashSvc := service.NewArgon2HashService()
	log := zerolog.Nop()

	router := gin.New()
	router.POST("/test", BasicAuth(repo, hashSvc, log), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBasicAuth_UnknownUsername(t *testing.T) {
	repo := &fakeAPIUserRepo{users: map[string]*domain.APIUser{}}
	hashSvc := service.NewArgon2HashService()
	log := zerolog.Nop()

	router := gin.New()
	router.POST("/test", BasicAuth(repo, hashSvc, log), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.SetBasicAuth("ghost", "whatever")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBasicAuth_WrongPassword(t *testing.T) {
	hashSvc := service.NewArgon2HashService()
	hash, err := hashSvc.Hash("correct-horse")
	require.NoError(t, err)

	repo := &fakeAPIUserRepo{users: map[string]*domain.APIUser{
		"alice": {ID: uuid.New(), Username: "alice", PasswordHash: hash},
	}}
	log := zerolog.Nop()

	router := gin.New()
	router.POST("/test", BasicAuth(repo, hashSvc, log), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.SetBasicAuth("alice", "wrong-password")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBasicAuth_Success(t *testing.T) {
	hashSvc := service.NewArgon2HashService()
	hash, err := hashSvc.Hash("correct-horse")
	require.NoError(t, err)

	userID := uuid.New()
	repo := &fakeAPIUserRepo{users: map[string]*domain.APIUser{
		"alice": {ID: userID, Username: "alice", PasswordHash: hash, Superuser: true},
	}}
	log := zerolog.Nop()

	var capturedID uuid.UUID
	var capturedSuperuser bool
	router := gin.New()
	router.POST("/test", BasicAuth(repo, hashSvc, log), func(c *gin.Context) {
		id, _ := c.Get(CtxAPIUserID)
		capturedID = id.(uuid.UUID)
		su, _ := c.Get(CtxSuperuser)
		capturedSuperuser = su.(bool)
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.SetBasicAuth("alice", "correct-horse")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, capturedID)
	assert.True(t, capturedSuperuser)
}

func TestRequireSuperuser_RejectsNonSuperuser(t *testing.T) {
	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		c.Set(CtxSuperuser, false)
		c.Next()
	}, RequireSuperuser(), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireSuperuser_AllowsSuperuser(t *testing.T) {
	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		c.Set(CtxSuperuser, true)
		c.Next()
	}, RequireSuperuser(), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery_PanicRecovered(t *testing.T) {
	log := zerolog.Nop()

	router := gin.New()
	router.Use(Recovery(log))
	router.GET("/panic", func(c *gin.Context) {
		panic("something went wrong")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SYS_001", resp["error_code"])
}
