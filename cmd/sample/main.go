package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/code-payments/cashier/cashier"
	"github.com/code-payments/cashier/iap"
	"github.com/code-payments/cashier/iap/googleplay"
	"github.com/code-payments/cashier/iap/googleplay/memory"
	"github.com/code-payments/cashier/iap/googleplay/publisher"
)

var gas = iap.MustItem("android.test.purchased", "$0.99", "USD", "Gas", "A tank of gas for the car", 990_000)

type activityResult struct {
	requestCode int
	resultCode  int
	data        *iap.Intent
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("failed to load .env file: %v", err)
	}

	logger := zap.Must(zap.NewProduction())
	if os.Getenv("CASHIER_DEBUG") == "true" {
		logger = zap.Must(zap.NewDevelopment())
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(context.Background(), logger, LoadConfig(logger)); err != nil {
		logger.Fatal("Sample failed", zap.Error(err))
	}
}

func run(ctx context.Context, log *zap.Logger, cfg Config) error {
	store, err := memory.NewService(cfg.PackageName, memory.WithProducts(gas))
	if err != nil {
		return err
	}

	encodedKey, err := store.EncodedPublicKey()
	if err != nil {
		return err
	}
	publicKey, err := googleplay.ParsePublicKey(encodedKey)
	if err != nil {
		return err
	}

	catalog, err := newCatalog(ctx, log, cfg, store)
	if err != nil {
		return err
	}
	cached := googleplay.NewCachedCatalog(catalog, cfg.CatalogTTL)
	defer cached.Close()

	registry := cashier.NewRegistry()
	registry.Register(googleplay.VendorID, func(_ context.Context, log *zap.Logger) (iap.Vendor, error) {
		return googleplay.New(log, store, cfg.PackageName,
			googleplay.WithPublicKey(publicKey),
			googleplay.WithCatalog(cached),
		), nil
	})

	// The simulated host shows the payment sheet and lets the user approve it.
	results := make(chan activityResult, 1)
	launcher := iap.LauncherFunc(func(intent *iap.Intent, requestCode int) error {
		go func() {
			resultCode, data := store.Approve(intent)
			results <- activityResult{requestCode: requestCode, resultCode: resultCode, data: data}
		}()
		return nil
	})

	c, err := cashier.ForStore(registry, googleplay.VendorID).
		WithLogger(log).
		WithLauncher(launcher).
		WithWorkers(cfg.Workers).
		Build(ctx)
	if err != nil {
		return err
	}
	defer c.Dispose()

	purchase, err := buy(c, results)
	if err != nil {
		return err
	}

	text, err := purchase.JSON()
	if err != nil {
		log.Fatal("Failed to serialize purchase", zap.Error(err))
	}
	log.Info("Purchase text form", zap.String("purchase", text))

	// A cashier can also be built from a purchase, bound to the vendor that
	// produced it.
	fromPurchase, err := cashier.ForPurchase(registry, purchase).
		WithLogger(log).
		WithWorkers(cfg.Workers).
		Build(ctx)
	if err != nil {
		return err
	}
	defer fromPurchase.Dispose()

	if err := showInventory(log, fromPurchase); err != nil {
		return err
	}
	if err := consume(log, fromPurchase, purchase); err != nil {
		return err
	}
	return showInventory(log, fromPurchase)
}

func newCatalog(ctx context.Context, log *zap.Logger, cfg Config, service googleplay.BillingService) (googleplay.Catalog, error) {
	if cfg.PublisherCredentials == "" {
		return googleplay.NewServiceCatalog(log, service, cfg.PackageName), nil
	}

	credentials, err := os.ReadFile(cfg.PublisherCredentials)
	if err != nil {
		return nil, err
	}
	log.Info("Reading product details from the Developer API")
	return publisher.NewCatalogFromCredentials(ctx, log, cfg.PackageName, credentials)
}

func buy(c *cashier.Cashier, results <-chan activityResult) (*iap.Purchase, error) {
	done := make(chan *iap.Purchase, 1)
	failed := make(chan *iap.VendorError, 1)

	err := c.Purchase(gas, iap.PurchaseFuncs{
		OnSuccess: func(p *iap.Purchase) { done <- p },
		OnFailure: func(_ iap.Product, err *iap.VendorError) { failed <- err },
	})
	if err != nil {
		return nil, err
	}

	for {
		select {
		case r := <-results:
			if !c.OnActivityResult(r.requestCode, r.resultCode, r.data) {
				zap.L().Warn("Activity result not handled by cashier", zap.Int("request_code", r.requestCode))
			}
		case p := <-done:
			zap.L().Info("Purchased", zap.String("sku", p.SKU()), zap.String("order_id", p.OrderID))
			return p, nil
		case err := <-failed:
			return nil, err
		case <-time.After(30 * time.Second):
			return nil, context.DeadlineExceeded
		}
	}
}

func showInventory(log *zap.Logger, c *cashier.Cashier) error {
	loaded := make(chan *iap.Inventory, 1)
	failed := make(chan *iap.VendorError, 1)

	err := c.GetInventory(iap.InventoryFuncs{
		OnSuccess: func(inv *iap.Inventory) { loaded <- inv },
		OnFailure: func(err *iap.VendorError) { failed <- err },
	}, iap.WithItemDetails(gas.SKU))
	if err != nil {
		return err
	}

	select {
	case inv := <-loaded:
		skus := make([]string, 0, len(inv.Purchases))
		for _, p := range inv.Purchases {
			skus = append(skus, p.SKU())
		}
		log.Info("Inventory", zap.Strings("owned", skus), zap.Int("products", len(inv.Products)))
		return nil
	case err := <-failed:
		return err
	}
}

func consume(log *zap.Logger, c *cashier.Cashier, purchase *iap.Purchase) error {
	result := make(chan *iap.VendorError, 1)

	err := c.Consume(purchase, iap.ConsumeFuncs{
		OnSuccess: func(*iap.Purchase) { result <- nil },
		OnFailure: func(_ *iap.Purchase, err *iap.VendorError) { result <- err },
	})
	if err != nil {
		return err
	}

	if err := <-result; err != nil {
		return err
	}
	log.Info("Consumed", zap.String("sku", purchase.SKU()))
	return nil
}
