package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wb-go/wbf/ginext"

	"templegames/internal/dto"
	"templegames/internal/model"
)

const issuer = "templegames"

type Claims struct {
	UserID   int64  `json:"uid"`
	TempleID int64  `json:"temple_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func IssueToken(secret string, u *model.User, ttl time.Duration) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   u.ID,
		TempleID: u.TempleID,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
		},
	})
	return tok.SignedString([]byte(secret))
}

func ParseToken(secret, tokenStr string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	cl, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return cl, nil
}

// Middleware validates the bearer token and stores the caller identity
// on the request context.
func Middleware(secret string) ginext.HandlerFunc {
	return func(c *ginext.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenStr == "" {
			dto.UnauthorizedError(c)
			c.Abort()
			return
		}

		cl, err := ParseToken(secret, tokenStr)
		if err != nil {
			dto.UnauthorizedError(c)
			c.Abort()
			return
		}

		c.Set("uid", cl.UserID)
		c.Set("temple_id", cl.TempleID)
		c.Set("role", cl.Role)
		c.Next()
	}
}

// RequireTempleAdmin gates team create/update behind the temple_admin role.
func RequireTempleAdmin() ginext.HandlerFunc {
	return func(c *ginext.Context) {
		role, _ := c.Get("role")
		if role != model.RoleTempleAdmin {
			dto.ForbiddenError(c, "Temple admin role required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func UserID(c *ginext.Context) int64 {
	v, _ := c.Get("uid")
	id, _ := v.(int64)
	return id
}

func TempleID(c *ginext.Context) int64 {
	v, _ := c.Get("temple_id")
	id, _ := v.(int64)
	return id
}
