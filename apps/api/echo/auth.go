package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/school"
)

const (
	contextTokenKey = "adminToken"
	contextAdminKey = "admin"
	jwtAudience     = "School Admin"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	SchoolID     string `json:"school_id"`
	Email        string `json:"email,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func GetAdminClaims(adm school.Admin, conf *core.Config, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   adm.ID,
			Audience:  jwtAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		SchoolID:     adm.SchoolID,
		Email:        adm.Email,
	}
}

// GenerateToken generates a signed JWT token string representing the admin Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	jwtConf := newJWTConfig(conf)
	method := jwt.GetSigningMethod(jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(jwtConf.SigningKey)
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

func getContextAdmin(ctx echo.Context, svc *school.Service, clms ...Claims) (school.Admin, error) {
	if adm, ok := ctx.Get(contextAdminKey).(school.Admin); ok {
		return adm, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return school.Admin{}, errors.Wrap(err, "getting context claims")
		}
	}

	adm, err := svc.GetAdminByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if err == school.ErrNotFound {
			return school.Admin{}, errUnauthorized
		}
		return school.Admin{}, errors.Wrap(err, "finding admin by ID")
	}
	if adm.SchoolID != claims.SchoolID {
		return school.Admin{}, errUnauthorized
	}
	ctx.Set(contextAdminKey, adm)
	return adm, nil
}

type authApi struct {
	conf     *core.Config
	svc      *school.Service
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := authApi{
		conf:     deps.Conf,
		svc:      deps.SchoolSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.POST("/token-refresh", api.refreshToken, jwt)
}

type loginData struct {
	SchoolID string `json:"school_id" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (api *authApi) login(ctx echo.Context) error {
	var data loginData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to loginData")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	claims, err := api.authenticate(ctx, data)
	if err != nil {
		return err
	}
	token, err := GenerateToken(claims, api.conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, tokenResponse{Token: token})
}

func (api *authApi) authenticate(ctx echo.Context, data loginData) (*Claims, error) {
	reqCtx := ctx.Request().Context()
	adm, err := api.svc.Authenticate(reqCtx, data.SchoolID, data.Email, data.Password)
	if err != nil {
		if err == school.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "authenticating admin")
	}
	if !adm.IsActive {
		return nil, errAccountDeactivated
	}
	if _, err = api.svc.SetLastLogin(reqCtx, adm); err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetAdminClaims(adm, api.conf), nil
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	adm, err := getContextAdmin(ctx, api.svc, claims)
	if err != nil {
		return errors.Wrap(err, "getting context admin")
	}

	// check if admin is still active
	if !adm.IsActive {
		return errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(api.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return errRefreshExpired
	}

	token, err := GenerateToken(GetAdminClaims(adm, api.conf, claims.OrigIssuedAt), api.conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, tokenResponse{Token: token})
}
