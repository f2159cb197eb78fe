package api

import (
	"crypto"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	contextKeyUserID  = "gigflow.userID"
	defaultCookieName = "access_token"
)

var ErrInvalidPublicKey = errors.New("public key is not an Ed25519 key")

// JWT 是外部帳號服務簽發的 access token 內容
type JWT struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// ParseAndValidateJWT 驗證簽章與有效期間，並確認 subject 是合法的使用者 ID
func ParseAndValidateJWT(tokenString string, publicKey crypto.PublicKey) (*JWT, uuid.UUID, error) {
	const op = "ParseJWT"
	token, err := jwt.ParseWithClaims(tokenString, &JWT{}, func(token *jwt.Token) (interface{}, error) {
		return publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}
	if !token.Valid {
		return nil, uuid.Nil, fmt.Errorf("%s: token is invalid", op)
	}
	claims, ok := token.Claims.(*JWT)
	if !ok {
		return nil, uuid.Nil, fmt.Errorf("%s: token claims are invalid", op)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: subject is not a user id, err=%w", op, err)
	}
	return claims, userID, nil
}

// ParseEd25519PublicKey 解析 PEM (PKIX) 格式的 Ed25519 公鑰
func ParseEd25519PublicKey(data []byte) (ed25519.PublicKey, error) {
	const op = "ParseEd25519PublicKey"
	key, err := jwt.ParseEdPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to parse public key, err=%w", op, err)
	}
	publicKey, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("[%s] %w", op, ErrInvalidPublicKey)
	}
	return publicKey, nil
}

// extractToken 依序從 cookie 與 Authorization header 取得 token
func (impl *ServerImpl) extractToken(c *gin.Context) string {
	if token, err := c.Cookie(impl.cookieName()); err == nil && token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func (impl *ServerImpl) cookieName() string {
	if impl.config.Auth.CookieName != "" {
		return impl.config.Auth.CookieName
	}
	return defaultCookieName
}

// AuthMiddleware 驗證 access token，成功後將使用者 ID 放入 context
func (impl *ServerImpl) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := impl.extractToken(c)
		if tokenString == "" {
			abortWithError(c, http.StatusUnauthorized, codeUnauthorized, "Not authorized, no token")
			return
		}
		_, userID, err := ParseAndValidateJWT(tokenString, impl.config.Auth.PublicKey)
		if err != nil {
			impl.logger.Debug("Fail to parse and validate JWT", slog.Any("error", err))
			abortWithError(c, http.StatusUnauthorized, codeUnauthorized, "Not authorized, token failed")
			return
		}
		c.Set(contextKeyUserID, userID)
		c.Next()
	}
}

// currentUser 回傳通過驗證的使用者 ID，只能在 AuthMiddleware 之後使用
func currentUser(c *gin.Context) uuid.UUID {
	return c.MustGet(contextKeyUserID).(uuid.UUID)
}
