package services

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/thelaunchbay/launchbay-engine/internal/deploy"
	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
	"github.com/thelaunchbay/launchbay-engine/pkg/render"
	"github.com/thelaunchbay/launchbay-engine/pkg/retry"
	"github.com/thelaunchbay/launchbay-engine/pkg/service"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
)

// LookupHostFunc resolves a hostname to addresses. Injected so tests can
// simulate DNS propagation delays and permanent failures.
type LookupHostFunc func(ctx context.Context, host string) ([]string, error)

func defaultLookupHost(ctx context.Context, host string) ([]string, error) {
	return net.DefaultResolver.LookupHost(ctx, host)
}

// RouterConfig describes one HTTP router exposing services on a domain.
type RouterConfig struct {
	ID            string
	LongID        uuid.UUID
	Name          string
	Action        service.Action
	DefaultDomain string
	CustomDomains []string
	Routes        []render.Route
	HelmTimeout   time.Duration

	// DNSSchedule bounds the domain-resolution check. DNS propagation is
	// slow convergence; the default allows several minutes.
	DNSSchedule retry.Schedule

	// LookupHost overrides DNS resolution.
	LookupHost LookupHostFunc

	// DeployerFactory overrides how deployment algorithms are built.
	DeployerFactory DeployerFactory
}

// Router exposes applications and containers on HTTP domains, always
// deployed in-cluster as an ingress release.
type Router struct {
	cfg         RouterConfig
	dns         retry.Schedule
	lookup      LookupHostFunc
	deployerFor DeployerFactory
}

// NewRouter builds a router service from its configuration.
func NewRouter(cfg RouterConfig) *Router {
	dns := cfg.DNSSchedule
	if dns.Attempts == 0 {
		dns = retry.Fibonacci(3*time.Second, 40)
	}
	lookup := cfg.LookupHost
	if lookup == nil {
		lookup = defaultLookupHost
	}
	factory := cfg.DeployerFactory
	if factory == nil {
		factory = defaultDeployerFactory
	}
	return &Router{cfg: cfg, dns: dns, lookup: lookup, deployerFor: factory}
}

// ID implements service.Service.
func (r *Router) ID() string { return r.cfg.ID }

// Name implements service.Service.
func (r *Router) Name() string { return r.cfg.Name }

// Kind implements service.Service.
func (r *Router) Kind() service.Kind { return service.KindRouter }

// Action implements service.Service.
func (r *Router) Action() service.Action { return r.cfg.Action }

// Scope implements service.Service.
func (r *Router) Scope() engine.Scope { return engine.RouterScope(r.cfg.Name) }

// Resources implements service.Sizer. Routers delegate traffic to the
// cluster ingress controller and consume no capacity of their own.
func (r *Router) Resources() service.Resources {
	return service.Resources{}
}

func (r *Router) release(tgt *target.Target) deploy.Release {
	return deploy.Release{
		Scope:       r.Scope(),
		Name:        service.ReleaseName(r),
		TemplateDir: tgt.TemplatePath("charts", "router"),
		Workdir:     tgt.WorkspacePath(r.cfg.ID, "chart"),
		Namespace:   tgt.Namespace,
		Data: render.RouterContext{
			ID:                          r.cfg.ID,
			Name:                        r.cfg.Name,
			Namespace:                   tgt.Namespace,
			KubeconfigPath:              tgt.Cluster.KubeconfigPath,
			DefaultDomain:               r.cfg.DefaultDomain,
			CustomDomains:               r.cfg.CustomDomains,
			Routes:                      r.cfg.Routes,
			ResourceExpirationInSeconds: tgt.TTLSeconds(),
		},
		Timeout: r.cfg.HelmTimeout,
		// Ingress objects run no pods of their own.
		Selector: "",
		FailureMessage: fmt.Sprintf(
			"router %s failed to deploy - check your domain and route configuration", r.cfg.Name),
	}
}

// checkDomain verifies the default domain resolves, retrying while DNS
// records propagate.
func (r *Router) checkDomain(ctx context.Context, tgt *target.Target) error {
	err := retry.Do(ctx, r.dns, func(ctx context.Context) error {
		addrs, err := r.lookup(ctx, r.cfg.DefaultDomain)
		if err != nil {
			return retry.Transientf("domain %s does not resolve yet: %s", r.cfg.DefaultDomain, err)
		}
		if len(addrs) == 0 {
			return retry.Transientf("domain %s has no records yet", r.cfg.DefaultDomain)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if retry.IsTransient(err) {
		return engine.NewUser(r.Scope(), tgt.ExecutionID,
			fmt.Sprintf("router domain %s is still not ready after several retries", r.cfg.DefaultDomain), err)
	}
	return engine.NewInternal(r.Scope(), tgt.ExecutionID,
		fmt.Sprintf("failed to check domain %s", r.cfg.DefaultDomain), err)
}

// Execute implements service.Lifecycle.
func (r *Router) Execute(ctx context.Context, tgt *target.Target, action service.Action, phase service.Phase) error {
	d := r.deployerFor(tgt, r)
	rel := r.release(tgt)

	table := hookTable{
		service.ActionCreate: {
			service.PhaseRun: func(ctx context.Context, d *deploy.Deployer) error {
				return d.DeployStateless(ctx, rel)
			},
			service.PhaseCheck: func(ctx context.Context, d *deploy.Deployer) error {
				return r.checkDomain(ctx, tgt)
			},
			service.PhaseError: func(ctx context.Context, d *deploy.Deployer) error {
				return d.DeleteStateless(ctx, rel, true)
			},
		},
		service.ActionPause: {
			// Pausing a router removes its release; recreation is cheap
			// and leaves no orphaned load-balancer resources behind.
			service.PhaseRun: func(ctx context.Context, d *deploy.Deployer) error {
				return d.DeleteStateless(ctx, rel, false)
			},
		},
		service.ActionDelete: {
			service.PhaseRun: func(ctx context.Context, d *deploy.Deployer) error {
				return d.DeleteStateless(ctx, rel, false)
			},
		},
	}
	return dispatch(ctx, d, r.Kind(), table, action, phase)
}
