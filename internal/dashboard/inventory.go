package dashboard

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/catalog"
	"github.com/rayaadinda/kp-inventory/internal/classify"
	"github.com/rayaadinda/kp-inventory/internal/gateway"
	"github.com/rayaadinda/kp-inventory/internal/models"
)

const opInventory = "inventory"

// inventoryView is the loaded item list with its search box and category
// chips. Pages embed it and share its mutex.
type inventoryView struct {
	mu         sync.Mutex
	gw         gateway.Gateway
	gens       *gateway.Generations
	log        *zap.Logger
	items      []models.InventoryItem
	categories []classify.Category
	query      string
	category   classify.Category
	loading    bool
	loadErr    error
}

func (v *inventoryView) init(gw gateway.Gateway, log *zap.Logger) {
	v.gw = gw
	v.gens = gateway.NewGenerations()
	v.log = log
	v.category = classify.All
}

// Load fetches the inventory. A response that arrives after a newer Load
// was started is discarded.
func (v *inventoryView) Load(ctx context.Context) error {
	gen := v.gens.Next(opInventory)
	v.mu.Lock()
	v.loading = true
	v.mu.Unlock()

	items, err := v.gw.ListInventory(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.gens.IsCurrent(opInventory, gen) {
		v.log.Debug("discarding stale inventory response", zap.Uint64("generation", gen))
		return nil
	}
	v.loading = false
	v.loadErr = err
	if err != nil {
		v.log.Warn("inventory load failed", zap.Error(err))
		return err
	}
	v.items = items
	v.categories = catalog.Categories(items)
	return nil
}

func (v *inventoryView) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// LoadError is the message for the last failed load, or "".
func (v *inventoryView) LoadError() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loadErr == nil {
		return ""
	}
	return "failed to load data: " + Message(v.loadErr)
}

func (v *inventoryView) SetQuery(q string) {
	v.mu.Lock()
	v.query = q
	v.mu.Unlock()
}

func (v *inventoryView) SetCategory(c classify.Category) {
	v.mu.Lock()
	if c == "" {
		c = classify.All
	}
	v.category = c
	v.mu.Unlock()
}

func (v *inventoryView) Query() (string, classify.Category) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query, v.category
}

// Categories returns the chips for the current load, "All" first.
func (v *inventoryView) Categories() []classify.Category {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]classify.Category{classify.All}, v.categories...)
}

// Items returns every loaded item, unfiltered.
func (v *inventoryView) Items() []models.InventoryItem {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.InventoryItem(nil), v.items...)
}

// Visible returns the items matching the search box and category.
func (v *inventoryView) Visible() []models.InventoryItem {
	v.mu.Lock()
	defer v.mu.Unlock()
	return catalog.Filter(v.items, v.query, v.category)
}

func (v *inventoryView) itemLocked(id string) (models.InventoryItem, bool) {
	for _, it := range v.items {
		if it.ID == id {
			return it, true
		}
	}
	return models.InventoryItem{}, false
}

// Item looks up a loaded item by id or, failing that, by product code.
func (v *inventoryView) Item(ref string) (models.InventoryItem, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if it, ok := v.itemLocked(ref); ok {
		return it, true
	}
	for _, it := range v.items {
		if strings.EqualFold(it.ProductCode, ref) {
			return it, true
		}
	}
	return models.InventoryItem{}, false
}

// InventoryPage lists stock with derived status and edits records.
type InventoryPage struct {
	inventoryView
	policy classify.StockPolicy
}

func NewInventoryPage(gw gateway.Gateway, policy classify.StockPolicy, log *zap.Logger) *InventoryPage {
	if log == nil {
		log = zap.NewNop()
	}
	p := &InventoryPage{policy: policy}
	p.init(gw, log)
	return p
}

// Rows returns the visible items with unit, minimum level and status.
func (p *InventoryPage) Rows() []catalog.Row {
	return catalog.Decorate(p.Visible(), p.policy)
}

func (p *InventoryPage) Summary() catalog.Summary {
	return catalog.Summarize(catalog.Decorate(p.Items(), p.policy))
}

// ItemForm is the add-item form as typed.
type ItemForm struct {
	ProductCode string
	ProductName string
	Quantity    string
	Supplier    string
	Location    string
}

func (f ItemForm) request() (models.CreateItemRequest, error) {
	var problems []string
	code := strings.TrimSpace(f.ProductCode)
	name := strings.TrimSpace(f.ProductName)
	if code == "" {
		problems = append(problems, "product code is required")
	}
	if name == "" {
		problems = append(problems, "product name is required")
	}
	qty, err := strconv.Atoi(strings.TrimSpace(f.Quantity))
	if err != nil || qty < 0 {
		problems = append(problems, "quantity must be a whole number of zero or more")
	}
	if len(problems) > 0 {
		return models.CreateItemRequest{}, gateway.NewLocalValidation(strings.Join(problems, "; "))
	}
	return models.CreateItemRequest{
		ProductCode: code,
		ProductName: name,
		Quantity:    qty,
		Supplier:    strings.TrimSpace(f.Supplier),
		Location:    strings.TrimSpace(f.Location),
	}, nil
}

// Create submits the add-item form and reloads the list on success.
func (p *InventoryPage) Create(ctx context.Context, form ItemForm) (models.InventoryItem, error) {
	req, err := form.request()
	if err != nil {
		return models.InventoryItem{}, err
	}
	item, err := p.gw.CreateItem(ctx, req)
	if err != nil {
		return models.InventoryItem{}, err
	}
	p.log.Info("item created", zap.String("productCode", item.ProductCode))
	return item, p.Load(ctx)
}

// UpdateQuantity sets an item's stock level.
func (p *InventoryPage) UpdateQuantity(ctx context.Context, id string, qty int) error {
	if qty < 0 {
		return gateway.NewLocalValidation("quantity must be zero or more")
	}
	if _, err := p.gw.UpdateQuantity(ctx, id, qty); err != nil {
		return err
	}
	return p.Load(ctx)
}

// Delete removes an item. Only admins may delete; the backend answers 403
// otherwise and the item stays listed.
func (p *InventoryPage) Delete(ctx context.Context, id string) error {
	if err := p.gw.DeleteItem(ctx, id); err != nil {
		if gateway.IsKind(err, gateway.Forbidden) {
			p.log.Info("delete refused", zap.String("id", id))
		}
		return err
	}
	return p.Load(ctx)
}
