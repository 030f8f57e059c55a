package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailhead/api/internal/models"
)

func TestRequireRoles_ForbiddenForWrongRole(t *testing.T) {
	t.Parallel()
	tokens, engine := newAuthFixture(activeUser(models.UserRoleUser))

	token, err := tokens.Issue("user-1", time.Now())
	require.NoError(t, err)

	rec := doRequest(engine, "/admin", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoles_AllowsListedRole(t *testing.T) {
	t.Parallel()
	tokens, engine := newAuthFixture(activeUser(models.UserRoleAdmin))

	token, err := tokens.Issue("user-1", time.Now())
	require.NoError(t, err)

	rec := doRequest(engine, "/admin", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoles_RequiresAuthFirst(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.GET("/admin", RequireRoles(models.UserRoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := doRequest(engine, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
