package cashier

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/code-payments/cashier/executor"
	"github.com/code-payments/cashier/iap"
	"github.com/code-payments/cashier/looper"
)

const defaultWorkers = 2

// Builder configures a Cashier. Obtain one with ForStore or ForPurchase.
type Builder struct {
	registry *Registry
	vendor   iap.VendorID

	log        *zap.Logger
	executor   iap.Executor
	dispatcher iap.Dispatcher
	launcher   iap.Launcher
	payload    string
	workers    int
}

// ForStore binds the cashier to the named vendor.
func ForStore(registry *Registry, vendor iap.VendorID) *Builder {
	return &Builder{
		registry: registry,
		vendor:   vendor,
		workers:  defaultWorkers,
	}
}

// ForPurchase binds the cashier to the vendor that produced purchase.
func ForPurchase(registry *Registry, purchase *iap.Purchase) *Builder {
	var vendor iap.VendorID
	if purchase != nil {
		vendor = purchase.Vendor
	}
	return ForStore(registry, vendor)
}

// WithLogger sets the log sink. The default is zap.L().
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithExecutor runs blocking vendor calls on executor. Without one, the
// cashier owns a worker pool that Dispose shuts down.
func (b *Builder) WithExecutor(executor iap.Executor) *Builder {
	b.executor = executor
	return b
}

// WithWorkers sizes the owned worker pool. Ignored with WithExecutor.
func (b *Builder) WithWorkers(n int) *Builder {
	b.workers = n
	return b
}

// WithDispatcher delivers UI-affine callbacks through dispatcher. Without
// one, the cashier owns a looper that Dispose quits.
func (b *Builder) WithDispatcher(dispatcher iap.Dispatcher) *Builder {
	b.dispatcher = dispatcher
	return b
}

// WithLauncher sets how payment sheets are shown. Purchase fails with
// iap.ErrNoLauncher without one.
func (b *Builder) WithLauncher(launcher iap.Launcher) *Builder {
	b.launcher = launcher
	return b
}

// WithDeveloperPayload attaches payload to every purchase started by the
// cashier.
func (b *Builder) WithDeveloperPayload(payload string) *Builder {
	b.payload = payload
	return b
}

// Build opens the vendor session. It fails with an error matching
// iap.ErrVendorMissing when nothing is registered for the vendor.
func (b *Builder) Build(ctx context.Context) (*Cashier, error) {
	log := b.log
	if log == nil {
		log = zap.L()
	}

	if b.vendor == "" {
		return nil, errors.Wrap(iap.ErrVendorMissing, "no vendor specified")
	}
	if b.registry == nil {
		return nil, errors.Wrapf(iap.ErrVendorMissing, "no registry for %s", b.vendor)
	}

	factory, ok := b.registry.Lookup(b.vendor)
	if !ok {
		return nil, errors.Wrapf(iap.ErrVendorMissing, "%s (registered: %v)", b.vendor, b.registry.Vendors())
	}

	log = log.With(zap.String("vendor", string(b.vendor)))
	vendor, err := factory(ctx, log)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", b.vendor)
	}

	c := newCashier(log, vendor, b.launcher, b.payload)

	if b.executor != nil {
		c.executor = b.executor
	} else {
		pool := executor.NewPool(log, b.workers)
		c.executor = pool
		c.teardown = append(c.teardown, func() error {
			pool.Shutdown()
			return nil
		})
	}

	if b.dispatcher != nil {
		c.dispatcher = b.dispatcher
	} else {
		l := looper.New(log).Start()
		c.dispatcher = l
		c.teardown = append(c.teardown, func() error {
			l.Quit()
			return nil
		})
	}

	log.Debug("Cashier built")
	return c, nil
}
