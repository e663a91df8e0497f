package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"mealcard/internal/auth"
	"mealcard/internal/errors"
	"mealcard/internal/handler"
	"mealcard/internal/metrics"
)

// Handlers groups the HTTP handlers served under /api.
type Handlers struct {
	Cards        *handler.CardHandler
	Transactions *handler.TransactionHandler
	TopUps       *handler.TopUpHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, jwtService *auth.JWTService, h Handlers, log *zap.Logger) {
	e.Use(middleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(middleware.Recover())
	e.Use(metrics.Middleware())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api", echojwt.WithConfig(echojwt.Config{
		SigningKey:     jwtService.Secret(),
		SigningMethod:  jwt.SigningMethodHS256.Alg(),
		TokenLookup:    "header:" + echo.HeaderAuthorization,
		NewClaimsFunc:  func(c echo.Context) jwt.Claims { return new(auth.Claims) },
		SuccessHandler: attachIdentity,
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
				Error: "invalid or expired token",
				Code:  "UNAUTHORIZED",
			})
		},
	}), requireIdentity)

	staff := RequireRole(auth.RoleAdmin, auth.RoleManager, auth.RoleCashier)
	approvers := RequireRole(auth.RoleAdmin, auth.RoleManager)
	cashier := RequireRole(auth.RoleCashier)
	holder := RequireRole(auth.RoleHolder)

	// Card routes
	api.POST("/cards", h.Cards.CreateCard, approvers)
	api.GET("/cards/:id", h.Cards.GetCard)
	api.GET("/cards/number/:number", h.Cards.GetCardByNumber, staff)
	api.GET("/cards/holder/:holderRef", h.Cards.GetCardsByHolder)

	// Selection routes
	api.POST("/cards/:id/items", h.Cards.StageItem, holder)
	api.DELETE("/cards/:id/items", h.Cards.UnstageItem, holder)
	api.POST("/cards/:id/items/decrement", h.Cards.DecrementItem, holder)
	api.GET("/cards/:id/selection", h.Cards.GetSelection, cashier)

	// Transaction routes
	api.POST("/cards/:id/purchase", h.Transactions.Purchase, cashier)
	api.POST("/cards/:id/finalize", h.Transactions.Finalize, cashier)
	api.GET("/cards/:id/entries", h.Transactions.ListCardEntries)
	api.GET("/entries/recent", h.Transactions.ListRecentEntries, staff)

	// Top-up routes
	api.POST("/cards/:id/top-ups", h.TopUps.RequestTopUp, holder)
	api.GET("/top-ups/pending", h.TopUps.ListPending, approvers)
	api.POST("/top-ups/:id/process", h.TopUps.ProcessTopUp, approvers)
}

// attachIdentity moves the validated claims into the request context.
func attachIdentity(c echo.Context) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return
	}
	claims, ok := token.Claims.(*auth.Claims)
	if !ok {
		return
	}
	id, err := claims.Identity()
	if err != nil {
		return
	}
	c.SetRequest(c.Request().WithContext(auth.WithIdentity(c.Request().Context(), id)))
}

// requireIdentity rejects tokens whose claims did not resolve to an identity.
func requireIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := auth.FromContext(c.Request().Context()); !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
				Error: "invalid token claims",
				Code:  "UNAUTHORIZED",
			})
		}
		return next(c)
	}
}

// RequireRole allows the request through only for the given roles.
func RequireRole(roles ...auth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, _ := auth.FromContext(c.Request().Context())
			if !id.HasRole(roles...) {
				return echo.NewHTTPError(http.StatusForbidden, errors.ErrorResponse{
					Error: "role not allowed",
					Code:  string(errors.KindForbidden),
				})
			}
			return next(c)
		}
	}
}

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				log.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
