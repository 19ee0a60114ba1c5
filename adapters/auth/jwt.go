package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/satriahrh/cocoa-fruit/haggle/utils/log"
)

const (
	DefaultExpiry = 24 * time.Hour
	issuer        = "cocoa-fruit-haggle"

	buyerIDKey = "buyer_id"
)

type Claims struct {
	BuyerID string `json:"buyer_id"`
	jwt.RegisteredClaims
}

// JWT issues and verifies buyer tokens.
type JWT struct {
	secret    []byte
	apiKey    string
	apiSecret string
	expiry    time.Duration
	now       func() time.Time
}

func NewJWT(secret, apiKey, apiSecret string) *JWT {
	return &JWT{
		secret:    []byte(secret),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		expiry:    DefaultExpiry,
		now:       time.Now,
	}
}

// Issue signs a token for buyerID.
func (j *JWT) Issue(buyerID string) (string, error) {
	now := j.now()
	claims := &Claims{
		BuyerID: buyerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   buyerID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// Verify parses and validates a signed token.
func (j *JWT) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.BuyerID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// CheckCredentials compares the API key pair used to obtain a token.
func (j *JWT) CheckCredentials(key, secret string) bool {
	keyOK := subtle.ConstantTimeCompare([]byte(key), []byte(j.apiKey)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(secret), []byte(j.apiSecret)) == 1
	return keyOK && secretOK
}

// Middleware authenticates requests with a bearer token. Browsers cannot set
// headers on a websocket handshake, so a "token" query parameter is accepted too.
func (j *JWT) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenString := c.QueryParam("token")
		if authHeader := c.Request().Header.Get(echo.HeaderAuthorization); authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
			}
		}
		if tokenString == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
		}

		claims, err := j.Verify(tokenString)
		if err != nil {
			log.WithCtx(c.Request().Context()).Debug("JWT validation failed")
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		}

		c.Set(buyerIDKey, claims.BuyerID)
		req := c.Request()
		c.SetRequest(req.WithContext(log.WithBuyer(req.Context(), claims.BuyerID)))
		return next(c)
	}
}

// BuyerID returns the authenticated buyer set by Middleware.
func BuyerID(c echo.Context) string {
	id, _ := c.Get(buyerIDKey).(string)
	return id
}
