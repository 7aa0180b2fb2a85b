package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/partsdesk/api/internal/platform/auth"
	"github.com/partsdesk/api/internal/platform/config"
	platformpg "github.com/partsdesk/api/internal/platform/postgres"
	repopg "github.com/partsdesk/api/internal/repositories/postgres"
	"github.com/partsdesk/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders   services.OrderService
	Catalog  services.CatalogService
	Identity services.IdentityService
}

// ContainerDeps carries the externally constructed collaborators.
type ContainerDeps struct {
	Config     config.Config
	UnitOfWork *platformpg.UnitOfWork
	Uploader   services.ImageUploader
	Events     services.OrderEventPublisher
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config        config.Config
	Services      Services
	TokenManager  *auth.TokenManager
	Authenticator *auth.Authenticator
}

// NewContainer assembles repositories and services over the shared unit of work.
func NewContainer(deps ContainerDeps) (*Container, error) {
	if deps.UnitOfWork == nil {
		return nil, errors.New("container: unit of work is required")
	}

	users, err := repopg.NewUserRepository(deps.UnitOfWork)
	if err != nil {
		return nil, fmt.Errorf("build user repository: %w", err)
	}
	categories, err := repopg.NewCategoryRepository(deps.UnitOfWork)
	if err != nil {
		return nil, fmt.Errorf("build category repository: %w", err)
	}
	items, err := repopg.NewItemRepository(deps.UnitOfWork)
	if err != nil {
		return nil, fmt.Errorf("build item repository: %w", err)
	}
	reports, err := repopg.NewTechnicalReportRepository(deps.UnitOfWork)
	if err != nil {
		return nil, fmt.Errorf("build report repository: %w", err)
	}
	orders, err := repopg.NewOrderRepository(deps.UnitOfWork)
	if err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	stock, err := repopg.NewStockLedger(deps.UnitOfWork)
	if err != nil {
		return nil, fmt.Errorf("build stock ledger: %w", err)
	}

	tokens, err := auth.NewTokenManager(auth.TokenManagerDeps{
		Secret: deps.Config.Auth.JWTSecret,
		TTL:    deps.Config.Auth.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("build token manager: %w", err)
	}
	authn, err := auth.NewAuthenticator(tokens)
	if err != nil {
		return nil, fmt.Errorf("build authenticator: %w", err)
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     orders,
		Reports:    reports,
		Items:      items,
		Stock:      stock,
		UnitOfWork: deps.UnitOfWork,
		Uploader:   deps.Uploader,
		Events:     deps.Events,
		Clock:      time.Now,
		Logger:     deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build order service: %w", err)
	}

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Items:      items,
		Categories: categories,
		Clock:      time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("build catalog service: %w", err)
	}

	identitySvc, err := services.NewIdentityService(services.IdentityServiceDeps{
		Users:  users,
		Tokens: tokens,
		Clock:  time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("build identity service: %w", err)
	}

	return &Container{
		Config: deps.Config,
		Services: Services{
			Orders:   orderSvc,
			Catalog:  catalogSvc,
			Identity: identitySvc,
		},
		TokenManager:  tokens,
		Authenticator: authn,
	}, nil
}
