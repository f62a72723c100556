package memory

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/code-payments/cashier/iap"
	"github.com/code-payments/cashier/iap/googleplay"
)

// ActionPurchase is the action of the buy intents the service hands out.
const ActionPurchase = "com.android.vending.billing.PURCHASE"

const (
	extraSKU      = "sku"
	extraItemType = "item_type"
	extraPayload  = "developer_payload"
)

var ErrDisconnected = errors.New("billing service disconnected")

// Method names a BillingService call for response injection.
type Method string

const (
	MethodIsBillingSupported Method = "isBillingSupported"
	MethodGetSkuDetails      Method = "getSkuDetails"
	MethodGetBuyIntent       Method = "getBuyIntent"
	MethodGetPurchases       Method = "getPurchases"
	MethodConsumePurchase    Method = "consumePurchase"
)

type owned struct {
	itemType  iap.ItemType
	sku       string
	data      string
	signature string
}

// Service is an in-memory Play Store billing service. Purchases are signed
// with the service's own RSA key, so vendors must be built with PublicKey.
type Service struct {
	packageName string
	key         *rsa.PrivateKey
	now         func() time.Time
	pageSize    int

	mu           sync.Mutex
	catalog      map[iap.ItemType]map[string]iap.Product
	owned        []owned
	unsupported  map[iap.ItemType]bool
	disconnected bool
	next         map[Method]googleplay.ResponseCode
	calls        map[Method]int
}

type Option func(*Service)

func WithProducts(products ...iap.Product) Option {
	return func(s *Service) {
		for _, p := range products {
			s.catalog[p.ItemType()][p.SKU] = p
		}
	}
}

// WithPageSize limits how many purchases GetPurchases returns per page.
func WithPageSize(n int) Option {
	return func(s *Service) {
		s.pageSize = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(packageName string, opts ...Option) (*Service, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	s := &Service{
		packageName: packageName,
		key:         key,
		now:         time.Now,
		pageSize:    100,
		catalog: map[iap.ItemType]map[string]iap.Product{
			iap.ItemTypeInApp:        {},
			iap.ItemTypeSubscription: {},
		},
		unsupported: map[iap.ItemType]bool{},
		next:        map[Method]googleplay.ResponseCode{},
		calls:       map[Method]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PublicKey is the key purchases are signed with.
func (s *Service) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

// EncodedPublicKey is PublicKey in the form the Play Console shows it.
func (s *Service) EncodedPublicKey() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// RespondNext makes the next call of method answer code.
func (s *Service) RespondNext(method Method, code googleplay.ResponseCode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next[method] = code
}

// SetDisconnected makes every call fail at the transport level.
func (s *Service) SetDisconnected(disconnected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disconnected = disconnected
}

func (s *Service) SetSupported(itemType iap.ItemType, supported bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unsupported[itemType] = !supported
}

// Calls returns how many times method was called.
func (s *Service) Calls(method Method) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[method]
}

// AddPurchase records an owned purchase with arbitrary data and signature.
func (s *Service) AddPurchase(itemType iap.ItemType, data, signature string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parsed googleplay.PurchaseData
	_ = json.Unmarshal([]byte(data), &parsed)
	s.owned = append(s.owned, owned{itemType: itemType, sku: parsed.ProductID, data: data, signature: signature})
}

// Reset forgets every owned purchase and pending injection.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.owned = nil
	s.disconnected = false
	s.unsupported = map[iap.ItemType]bool{}
	s.next = map[Method]googleplay.ResponseCode{}
	s.calls = map[Method]int{}
}

// enter records a call and returns the injected code, if any. The caller must
// hold mu.
func (s *Service) enter(method Method) (googleplay.ResponseCode, bool, error) {
	s.calls[method]++
	if s.disconnected {
		return 0, false, ErrDisconnected
	}
	if code, ok := s.next[method]; ok {
		delete(s.next, method)
		return code, true, nil
	}
	return googleplay.OK, false, nil
}

func (s *Service) IsBillingSupported(_ context.Context, apiVersion int, packageName string, itemType iap.ItemType) (googleplay.ResponseCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, injected, err := s.enter(MethodIsBillingSupported)
	if err != nil || injected {
		return code, err
	}
	if code := s.checkRequest(apiVersion, packageName); code != googleplay.OK {
		return code, nil
	}
	if s.unsupported[itemType] {
		return googleplay.BillingUnavailable, nil
	}
	return googleplay.OK, nil
}

func (s *Service) GetSkuDetails(_ context.Context, apiVersion int, packageName string, itemType iap.ItemType, skus []string) (googleplay.ResponseCode, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, injected, err := s.enter(MethodGetSkuDetails)
	if err != nil || injected {
		return code, nil, err
	}
	if code := s.checkRequest(apiVersion, packageName); code != googleplay.OK {
		return code, nil, nil
	}
	if len(skus) > 20 {
		return googleplay.DeveloperError, nil, nil
	}

	var details []string
	for _, sku := range skus {
		p, ok := s.catalog[itemType][sku]
		if !ok {
			continue
		}
		encoded, err := json.Marshal(googleplay.NewSkuDetails(p))
		if err != nil {
			return googleplay.Error, nil, nil
		}
		details = append(details, string(encoded))
	}
	return googleplay.OK, details, nil
}

func (s *Service) GetBuyIntent(_ context.Context, apiVersion int, packageName, sku string, itemType iap.ItemType, developerPayload string) (googleplay.ResponseCode, *iap.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, injected, err := s.enter(MethodGetBuyIntent)
	if err != nil || injected {
		return code, nil, err
	}
	if code := s.checkRequest(apiVersion, packageName); code != googleplay.OK {
		return code, nil, nil
	}
	if _, ok := s.catalog[itemType][sku]; !ok {
		return googleplay.ItemUnavailable, nil, nil
	}
	if s.ownedIndexBySKU(sku) >= 0 {
		return googleplay.ItemAlreadyOwned, nil, nil
	}

	return googleplay.OK, iap.NewIntent(ActionPurchase).
		Put(extraSKU, sku).
		Put(extraItemType, string(itemType)).
		Put(extraPayload, developerPayload), nil
}

func (s *Service) GetPurchases(_ context.Context, apiVersion int, packageName string, itemType iap.ItemType, continuationToken string) (googleplay.ResponseCode, *googleplay.PurchasesPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, injected, err := s.enter(MethodGetPurchases)
	if err != nil || injected {
		return code, nil, err
	}
	if code := s.checkRequest(apiVersion, packageName); code != googleplay.OK {
		return code, nil, nil
	}

	start := 0
	if continuationToken != "" {
		start, err = strconv.Atoi(continuationToken)
		if err != nil {
			return googleplay.DeveloperError, nil, nil
		}
	}

	page := &googleplay.PurchasesPage{}
	seen := 0
	for _, o := range s.owned {
		if o.itemType != itemType {
			continue
		}
		seen++
		if seen <= start {
			continue
		}
		if len(page.PurchaseData) == s.pageSize {
			page.ContinuationToken = strconv.Itoa(start + s.pageSize)
			break
		}
		page.PurchaseData = append(page.PurchaseData, o.data)
		page.Signatures = append(page.Signatures, o.signature)
	}
	return googleplay.OK, page, nil
}

func (s *Service) ConsumePurchase(_ context.Context, apiVersion int, packageName, purchaseToken string) (googleplay.ResponseCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, injected, err := s.enter(MethodConsumePurchase)
	if err != nil || injected {
		return code, err
	}
	if code := s.checkRequest(apiVersion, packageName); code != googleplay.OK {
		return code, nil
	}

	for i, o := range s.owned {
		var data googleplay.PurchaseData
		if json.Unmarshal([]byte(o.data), &data) == nil && data.PurchaseToken == purchaseToken {
			s.owned = append(s.owned[:i], s.owned[i+1:]...)
			return googleplay.OK, nil
		}
	}
	return googleplay.ItemNotOwned, nil
}

// Approve simulates the user confirming the payment sheet for intent.
func (s *Service) Approve(intent *iap.Intent) (int, *iap.Intent) {
	sku, _ := intent.Extra(extraSKU)
	itemType, _ := intent.Extra(extraItemType)
	payload, _ := intent.Extra(extraPayload)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ownedIndexBySKU(sku) >= 0 {
		return iap.ResultOK, iap.NewIntent(ActionPurchase).PutInt(googleplay.ExtraResponseCode, int(googleplay.ItemAlreadyOwned))
	}

	data, _ := json.Marshal(googleplay.PurchaseData{
		OrderID:          "GPA." + uuid.NewString(),
		PackageName:      s.packageName,
		ProductID:        sku,
		PurchaseTime:     s.now().UnixMilli(),
		DeveloperPayload: payload,
		PurchaseToken:    uuid.NewString(),
		AutoRenewing:     iap.ItemType(itemType) == iap.ItemTypeSubscription,
	})
	signature, err := SignPurchase(s.key, string(data))
	if err != nil {
		return iap.ResultOK, iap.NewIntent(ActionPurchase).PutInt(googleplay.ExtraResponseCode, int(googleplay.Error))
	}

	s.owned = append(s.owned, owned{itemType: iap.ItemType(itemType), sku: sku, data: string(data), signature: signature})

	result := iap.NewIntent(ActionPurchase).
		PutInt(googleplay.ExtraResponseCode, int(googleplay.OK)).
		Put(googleplay.ExtraPurchaseData, string(data)).
		Put(googleplay.ExtraDataSignature, signature)
	return iap.ResultOK, result
}

// Cancel simulates the user backing out of the payment sheet.
func (s *Service) Cancel(*iap.Intent) (int, *iap.Intent) {
	return iap.ResultCanceled, iap.NewIntent(ActionPurchase).PutInt(googleplay.ExtraResponseCode, int(googleplay.UserCanceled))
}

// Fail simulates the payment sheet reporting code.
func (s *Service) Fail(_ *iap.Intent, code googleplay.ResponseCode) (int, *iap.Intent) {
	return iap.ResultOK, iap.NewIntent(ActionPurchase).PutInt(googleplay.ExtraResponseCode, int(code))
}

func (s *Service) checkRequest(apiVersion int, packageName string) googleplay.ResponseCode {
	if apiVersion != googleplay.APIVersion || packageName != s.packageName {
		return googleplay.DeveloperError
	}
	return googleplay.OK
}

func (s *Service) ownedIndexBySKU(sku string) int {
	for i, o := range s.owned {
		if o.sku == sku {
			return i
		}
	}
	return -1
}

// SignPurchase signs purchase data the way the store does.
func SignPurchase(key *rsa.PrivateKey, data string) (string, error) {
	digest := sha1.Sum([]byte(data))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Sign signs data with the service's key.
func (s *Service) Sign(data string) (string, error) {
	return SignPurchase(s.key, data)
}
