// Package container provides dependency injection for the application.
package container

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/agentgate-dev/agentgate/internal/application/dto"
	"github.com/agentgate-dev/agentgate/internal/application/ports"
	"github.com/agentgate-dev/agentgate/internal/application/services"
	"github.com/agentgate-dev/agentgate/internal/infrastructure/config"
	"github.com/agentgate-dev/agentgate/internal/infrastructure/github"
	"github.com/agentgate-dev/agentgate/internal/infrastructure/httpclient"
	"github.com/agentgate-dev/agentgate/internal/infrastructure/manifest"
	"github.com/agentgate-dev/agentgate/internal/infrastructure/persistence/memory"
	"github.com/agentgate-dev/agentgate/internal/infrastructure/plugins"
	"github.com/agentgate-dev/agentgate/internal/infrastructure/redaction"
	"github.com/agentgate-dev/agentgate/internal/infrastructure/sensitivedata"
)

// Container holds all application dependencies.
type Container struct {
	credentials ports.CredentialRepository
	grants      ports.GrantRepository
	registry    *plugins.Registry

	auditTrail        *services.AuditTrail
	credentialService *services.CredentialService
	pluginService     *services.PluginService
	requestExecutor   *services.RequestExecutor
	tokenBroker       *services.TokenBroker

	cfg    *config.RuntimeConfig
	logger *slog.Logger
}

// Options configure the container.
type Options struct {
	Logger *slog.Logger
	Config *config.RuntimeConfig
}

// New creates a new dependency injection container. All repositories
// are in-memory; persistence is scoped to the process lifetime.
func New(opts Options) (*Container, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.RuntimeConfig{}
		cfg.ApplyDefaults()
	}

	credentialRepo := memory.NewCredentialRepository()
	pluginRepo := memory.NewPluginRepository()
	disclosureRepo := memory.NewDisclosureRepository()
	eventRepo := memory.NewEventRepository()
	auditRepo := memory.NewAuditRepository()
	grantRepo := memory.NewGrantRepository()

	secrets := sensitivedata.NewProvider()
	redactor, err := redaction.New(redaction.Config{Tracked: secrets})
	if err != nil {
		return nil, err
	}

	auditTrail := services.NewAuditTrail(auditRepo, redactor, opts.Logger)

	parser, err := manifest.NewParser()
	if err != nil {
		return nil, err
	}

	registry := plugins.NewRegistry(opts.Logger)

	ledger := services.NewDisclosureLedger(disclosureRepo)
	pluginService := services.NewPluginService(
		pluginRepo,
		eventRepo,
		ledger,
		parser,
		registry,
		registry,
		auditTrail,
		cfg.TrustModeValue(),
		opts.Logger,
	)

	credentialService := services.NewCredentialService(credentialRepo, auditTrail, secrets, opts.Logger)

	client := httpclient.New(time.Duration(cfg.TimeoutCapMs) * time.Millisecond)
	requestExecutor := services.NewRequestExecutor(
		credentialRepo,
		auditTrail,
		client,
		secrets,
		redactor,
		services.ExecutorOptions{
			DefaultTimeoutMs: cfg.DefaultTimeoutMs,
			TimeoutCapMs:     cfg.TimeoutCapMs,
			MaxBodyChars:     cfg.MaxBodyChars,
		},
		opts.Logger,
	)

	var tokenSource ports.InstallationTokenSource
	if cfg.GitHubAppID != "" && cfg.GitHubPrivateKeyPath != "" {
		key, err := github.LoadPrivateKey(cfg.GitHubPrivateKeyPath)
		if err != nil {
			return nil, err
		}
		tokenSource = github.NewTokenSource(cfg.GitHubAppID, key, cfg.GitHubAPIBaseURL, client)
	}
	tokenBroker := services.NewTokenBroker(grantRepo, tokenSource, auditTrail, cfg.DefaultTokenPreset, opts.Logger)

	c := &Container{
		credentials:       credentialRepo,
		grants:            grantRepo,
		registry:          registry,
		auditTrail:        auditTrail,
		credentialService: credentialService,
		pluginService:     pluginService,
		requestExecutor:   requestExecutor,
		tokenBroker:       tokenBroker,
		cfg:               cfg,
		logger:            opts.Logger,
	}
	c.registerBuiltinHandlers()
	return c, nil
}

// registerBuiltinHandlers wires the first-party plugin action tables.
// core.http routes its single action through the request executor so
// the full policy and redaction pipeline applies.
func (c *Container) registerBuiltinHandlers() {
	httpActions := map[string]func(ctx context.Context, payload map[string]any) (map[string]any, error){
		"secure_http_request": func(ctx context.Context, payload map[string]any) (map[string]any, error) {
			raw, err := json.Marshal(payload)
			if err != nil {
				return nil, err
			}
			var req dto.SecureRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return nil, err
			}
			resp, err := c.requestExecutor.Execute(ctx, req)
			if err != nil {
				return nil, err
			}
			out, err := json.Marshal(resp)
			if err != nil {
				return nil, err
			}
			var result map[string]any
			if err := json.Unmarshal(out, &result); err != nil {
				return nil, err
			}
			return result, nil
		},
	}
	plugins.RegisterBuiltins(c.registry, map[string]map[string]func(ctx context.Context, payload map[string]any) (map[string]any, error){
		"core.http":  httpActions,
		"core.files": nil,
		"core.shell": nil,
	})
}

// AuditTrail returns the audit service.
func (c *Container) AuditTrail() *services.AuditTrail {
	return c.auditTrail
}

// CredentialService returns the credential management service.
func (c *Container) CredentialService() *services.CredentialService {
	return c.credentialService
}

// PluginService returns the plugin lifecycle service.
func (c *Container) PluginService() *services.PluginService {
	return c.pluginService
}

// RequestExecutor returns the secure request executor.
func (c *Container) RequestExecutor() *services.RequestExecutor {
	return c.requestExecutor
}

// TokenBroker returns the scoped token broker.
func (c *Container) TokenBroker() *services.TokenBroker {
	return c.tokenBroker
}

// Grants returns the grant repository.
func (c *Container) Grants() ports.GrantRepository {
	return c.grants
}

// Config returns the runtime configuration.
func (c *Container) Config() *config.RuntimeConfig {
	return c.cfg
}

// Logger returns the configured logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}
