package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpadapter "github.com/chiwei-platform/site-provisioner/internal/adapter/http"
	"github.com/chiwei-platform/site-provisioner/internal/config"
	"github.com/chiwei-platform/site-provisioner/internal/logging"
)

const serviceName = "site-provisioner"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Provision per-tenant sites through a DNS provider and a hosting platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "optional config file (yaml/json/toml)")

	// setup 读取配置、创建 logger 并装配服务
	setup := func(ctx context.Context) (*app, *config.Config, *zap.Logger, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, nil, nil, err
		}
		logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, serviceName)
		if err != nil {
			return nil, nil, nil, err
		}
		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			_ = logger.Sync()
			return nil, nil, nil, err
		}
		return a, cfg, logger, nil
	}

	root.AddCommand(
		newServeCommand(setup),
		newTenantCommand(setup),
		newCheckCommand(setup),
	)
	return root
}

type setupFunc func(ctx context.Context) (*app, *config.Config, *zap.Logger, error)

func newServeCommand(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cfg, logger, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			defer func() { _ = logger.Sync() }()

			handler := httpadapter.NewRouter(
				httpadapter.NewTenantHandler(a.tenants, logger.Named("http")),
				promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
				cfg.APIToken,
				logger.Named("http"),
			)
			srv := &http.Server{
				Addr:              ":" + cfg.HTTPPort,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server starting", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			// Graceful shutdown
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return fmt.Errorf("server error: %w", err)
			case <-quit:
			}

			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newTenantCommand(setup setupFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Run a saga for a single stored tenant",
	}

	run := func(fn func(ctx context.Context, a *app, subdomain string) (any, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, _, logger, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			defer func() { _ = logger.Sync() }()

			out, err := fn(cmd.Context(), a, args[0])
			if out != nil {
				if encErr := printJSON(cmd, out); encErr != nil {
					return encErr
				}
			}
			return err
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "deploy <subdomain>",
			Short: "Create the DNS record and application, then trigger a deployment",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, a *app, subdomain string) (any, error) {
				tenant, err := a.tenants.DeployTenant(ctx, subdomain)
				if err != nil {
					return nil, err
				}
				return tenant, nil
			}),
		},
		&cobra.Command{
			Use:   "update <subdomain>",
			Short: "Push the stored display data to the application and redeploy",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, a *app, subdomain string) (any, error) {
				tenant, err := a.tenants.GetTenant(ctx, subdomain)
				if err != nil {
					return nil, err
				}
				if tenant, err = a.tenants.UpdateTenant(ctx, subdomain, tenant.Display); err != nil {
					return nil, err
				}
				return tenant, nil
			}),
		},
		&cobra.Command{
			Use:   "undeploy <subdomain>",
			Short: "Remove the DNS record and the application",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, a *app, subdomain string) (any, error) {
				result, err := a.tenants.UndeployTenant(ctx, subdomain)
				if err != nil {
					return nil, err
				}
				out := map[string]any{"subdomain": subdomain, "status": result.Status}
				return out, result.Err()
			}),
		},
	)
	return cmd
}

func newCheckCommand(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "check <subdomain>",
		Short: "Check whether a subdomain is free in the tenant store and DNS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, logger, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			defer func() { _ = logger.Sync() }()

			res, err := a.tenants.CheckSubdomain(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
