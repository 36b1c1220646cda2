package echoapi

import (
	"sort"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/certificate"
)

const (
	contextTokenKey  = "userToken"
	contextViewerKey = "viewer"
)

// Claims represents the authorization claims transmitted via a JWT.
// The platform issues the tokens; Subject is the user id.
type Claims struct {
	jwt.StandardClaims
	Name    string   `json:"name,omitempty"`
	Email   string   `json:"email,omitempty"`
	IsAdmin bool     `json:"is_admin,omitempty"`
	Roles   []string `json:"roles,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.Server.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// NewClaims returns the claims of viewer, valid for the configured JWT expiration delta.
func NewClaims(conf *core.Config, viewer certificate.Viewer, roles ...string) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   viewer.ID.String(),
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:    viewer.Name,
		Email:   viewer.Email,
		IsAdmin: viewer.IsAdmin,
		Roles:   roles,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.Server.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextViewer returns the authenticated user certificates are rendered for.
func getContextViewer(ctx echo.Context) (*certificate.Viewer, error) {
	if v, ok := ctx.Get(contextViewerKey).(*certificate.Viewer); ok {
		return v, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, err
	}
	if core.CleanString(claims.Subject) == "" {
		return nil, errUnauthorized
	}
	v := &certificate.Viewer{
		ID:      certificate.RefID(core.CleanString(claims.Subject)),
		Name:    claims.Name,
		Email:   claims.Email,
		IsAdmin: claims.IsAdmin,
	}
	ctx.Set(contextViewerKey, v)
	return v, nil
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	if claims, err := getContextClaims(ctx); err == nil {
		sort.Strings(claims.Roles)
		for _, role := range roles {
			if i := sort.SearchStrings(claims.Roles, role); i < len(claims.Roles) && claims.Roles[i] == role {
				return true
			}
		}
	}
	return false
}

// contextPerson identifies the request user in log entries.
func contextPerson(ctx echo.Context) core.Person {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return core.Person{}
	}
	return core.Person{ID: claims.Subject, Username: claims.Name, Email: claims.Email}
}
