package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/code-payments/cashier/iap"
)

const maxConcurrentLookups = 4

// Catalog reads product details from the Google Play Developer API instead of
// the device's billing service.
type Catalog struct {
	log         *zap.Logger
	svc         *androidpublisher.Service
	packageName string

	// Language picks the listing; the product's default language is used when
	// there is no listing for it.
	Language string
}

func NewCatalog(ctx context.Context, log *zap.Logger, packageName string, opts ...option.ClientOption) (*Catalog, error) {
	svc, err := androidpublisher.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create android publisher client: %w", err)
	}

	return &Catalog{
		log:         log,
		svc:         svc,
		packageName: packageName,
	}, nil
}

// NewCatalogFromCredentials authenticates with the contents of a service
// account JSON file.
func NewCatalogFromCredentials(ctx context.Context, log *zap.Logger, packageName string, serviceAccountJSON []byte) (*Catalog, error) {
	return NewCatalog(ctx, log, packageName, option.WithCredentialsJSON(serviceAccountJSON))
}

func (c *Catalog) SkuDetails(ctx context.Context, itemType iap.ItemType, skus []string) ([]iap.Product, error) {
	found := make([]*iap.Product, len(skus))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)

	for i, sku := range skus {
		i, sku := i, sku
		g.Go(func() error {
			product, err := c.lookup(ctx, itemType, sku)
			if err != nil || product == nil {
				return err
			}

			found[i] = product
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var products []iap.Product
	for _, p := range found {
		if p != nil {
			products = append(products, *p)
		}
	}
	return products, nil
}

// lookup returns nil when the SKU is unknown or of another item type.
func (c *Catalog) lookup(ctx context.Context, itemType iap.ItemType, sku string) (*iap.Product, error) {
	remote, err := c.svc.Inappproducts.Get(c.packageName, sku).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get in-app product %s: %w", sku, err)
	}

	if itemTypeOf(remote) != itemType {
		return nil, nil
	}
	if remote.Status != "" && remote.Status != "active" {
		c.log.Debug("Skipping inactive product", zap.String("sku", sku), zap.String("status", remote.Status))
		return nil, nil
	}

	product, err := c.toProduct(remote)
	if err != nil {
		c.log.Warn("Skipping invalid product", zap.Error(err), zap.String("sku", sku))
		return nil, nil
	}
	return &product, nil
}

func (c *Catalog) toProduct(remote *androidpublisher.InAppProduct) (iap.Product, error) {
	if remote.DefaultPrice == nil {
		return iap.Product{}, errors.New("product has no default price")
	}

	micros, err := strconv.ParseInt(remote.DefaultPrice.PriceMicros, 10, 64)
	if err != nil {
		return iap.Product{}, fmt.Errorf("price micros %q: %w", remote.DefaultPrice.PriceMicros, err)
	}

	price, err := iap.FormatPrice(remote.DefaultPrice.Currency, micros)
	if err != nil {
		return iap.Product{}, err
	}

	listing, ok := remote.Listings[c.Language]
	if !ok {
		listing = remote.Listings[remote.DefaultLanguage]
	}

	return iap.NewProduct(
		remote.Sku,
		price,
		remote.DefaultPrice.Currency,
		listing.Title,
		listing.Description,
		micros,
		itemTypeOf(remote) == iap.ItemTypeSubscription,
	)
}

func itemTypeOf(remote *androidpublisher.InAppProduct) iap.ItemType {
	if remote.PurchaseType == "subscription" {
		return iap.ItemTypeSubscription
	}
	return iap.ItemTypeInApp
}
