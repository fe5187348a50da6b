package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"

	adaptermiddleware "app-access/internal/adapters/http/middleware"
	adapterlogger "app-access/internal/adapters/logger"
	"app-access/internal/application"
	"app-access/internal/domain"
	"app-access/internal/infrastructure/auth"
	"app-access/internal/infrastructure/config"
	"app-access/internal/infrastructure/dynamodb"
	"app-access/internal/infrastructure/sqlstore"
	httpiface "app-access/internal/interfaces/http"
	"app-access/internal/platform/lambda"
	"app-access/internal/ports"
)

type stores struct {
	permissions ports.PermissionRepository
	users       ports.UserRepository
	close       func() error
}

func openStores(ctx context.Context, cfg config.Config, logger ports.Logger) (stores, error) {
	switch cfg.StoreBackend {
	case config.BackendSQL:
		db, err := sqlstore.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, logger)
		if err != nil {
			return stores{}, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return stores{}, err
		}
		return stores{
			permissions: sqlstore.NewPermissionRepository(db),
			users:       sqlstore.NewUserRepository(db),
			close:       sqlDB.Close,
		}, nil
	case config.BackendDynamoDB:
		client, err := dynamodb.NewClient(ctx, cfg.Region, cfg.TableName)
		if err != nil {
			return stores{}, err
		}
		return stores{
			permissions: dynamodb.NewPermissionRepository(client),
			users:       dynamodb.NewUserRepository(client),
			close:       func() error { return nil },
		}, nil
	default:
		return stores{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newRouter(cfg config.Config, s stores, allowList domain.AllowList, logger ports.Logger) (*echo.Echo, error) {
	resolver := application.NewResolverService(s.permissions, allowList, domain.DefaultCatalog(), logger)
	bulk := application.NewBulkUpdateService(s.permissions, cfg.BulkUpdateAtomic, logger)
	admin := application.NewAdminService(s.users, resolver, logger)

	var cognitoHandler echo.MiddlewareFunc
	if cfg.AuthMode == ports.AuthModeCognito {
		cognitoHandler = auth.NewCognitoMiddleware(cfg.UserPoolID, cfg.Region).Handler
	}
	authMiddleware, err := adaptermiddleware.AuthMiddleware(cfg.AuthMode, cfg.APIKey, cognitoHandler)
	if err != nil {
		return nil, err
	}
	mw := httpiface.Middleware{
		Auth:          authMiddleware,
		XRay:          adaptermiddleware.XRayMiddleware("app-access-http"),
		RequestLogger: adaptermiddleware.RequestLogger(logger),
	}
	return httpiface.NewMainRouter(
		httpiface.NewUserAppsHandler(bulk, logger),
		httpiface.NewAdminHandler(admin),
		httpiface.NewMarketplaceHandler(resolver),
		mw,
	), nil
}

// serveHTTP blocks until the server stops. A graceful shutdown is not an error.
func serveHTTP(e *echo.Echo, addr string) error {
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	ctx := context.Background()
	cfg, err := config.Load(".env")
	if err != nil {
		adapterlogger.New(slog.LevelInfo).Error(ctx, "configuration error", "error", err)
		os.Exit(1)
	}
	logger := adapterlogger.New(adapterlogger.ParseLevel(cfg.LogLevel))
	xray.Configure(xray.Config{LogLevel: "error"})

	allowList, err := config.LoadAllowList(cfg.AllowListFile)
	if err != nil {
		logger.Error(ctx, "failed to load allow-list", "error", err)
		os.Exit(1)
	}
	s, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "failed to open permission store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer s.close()

	e, err := newRouter(cfg, s, allowList, logger)
	if err != nil {
		logger.Error(ctx, "failed to initialize router", "error", err)
		os.Exit(1)
	}

	if lambda.InRuntime() {
		logger.Info(ctx, "starting lambda handler", "backend", cfg.StoreBackend, "auth_mode", string(cfg.AuthMode))
		awslambda.Start(lambda.NewHandler(e))
		return
	}
	logger.Info(ctx, "starting http server", "port", cfg.Port, "backend", cfg.StoreBackend, "allow_list_entries", allowList.Len())
	if err := serveHTTP(e, ":"+cfg.Port); err != nil {
		logger.Error(ctx, "http server stopped", "error", err)
		_ = s.close()
		os.Exit(1)
	}
}
