package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/grabber-app/cart/internal/domain/product"
	"github.com/grabber-app/cart/internal/storage/kv"
)

const (
	meterName   = "github.com/grabber-app/cart"
	saveTimeout = 5 * time.Second
)

// Options configures an Engine.
type Options struct {
	// Defaults holds the pricing configuration the cart starts with. A zero
	// FreeDeliveryThreshold falls back to DefaultFreeDeliveryThreshold.
	Defaults Defaults
	// Store receives serialized cart state after each mutation. Nil disables
	// persistence; the engine then operates purely in memory.
	Store kv.Store
	// Key is the storage key for the serialized cart. Empty means
	// DefaultStorageKey.
	Key string
	// SaveDelay coalesces bursts of mutations into a single store write.
	// Zero writes as soon as the saver observes a pending state.
	SaveDelay time.Duration
	// Logger for persistence warnings. Nil means no logging.
	Logger *zap.Logger
}

// Engine owns a single cart and serializes all mutations. Mutations take
// effect in memory immediately; persistence happens on a background goroutine
// and its failures never surface to callers.
type Engine struct {
	mu        sync.Mutex
	items     []LineItem
	baseFee   decimal.Decimal
	threshold decimal.Decimal
	discount  decimal.Decimal
	addressID string

	defaults Defaults

	store     kv.Store
	key       string
	saveDelay time.Duration
	lg        *zap.Logger

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	saveMu    sync.Mutex
	pending   []byte
	kick      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	metrics engineMetrics
}

// NewEngine creates an Engine with an empty cart. When opts.Store is set, a
// background saver goroutine is started; callers should Close the engine to
// flush the final state.
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Key == "" {
		opts.Key = DefaultStorageKey
	}
	if opts.Defaults.FreeDeliveryThreshold.IsZero() {
		opts.Defaults.FreeDeliveryThreshold = DefaultFreeDeliveryThreshold
	}

	e := &Engine{
		baseFee:   opts.Defaults.DeliveryFee,
		threshold: opts.Defaults.FreeDeliveryThreshold,
		discount:  decimal.Zero,
		defaults:  opts.Defaults,
		store:     opts.Store,
		key:       opts.Key,
		saveDelay: opts.SaveDelay,
		lg:        opts.Logger,
		metrics:   newEngineMetrics(opts.Logger),
	}

	if e.store != nil {
		e.kick = make(chan struct{}, 1)
		e.done = make(chan struct{})
		e.stopped = make(chan struct{})
		go e.saveLoop()
	}

	return e
}

// Restore loads the last persisted cart state from the store. A missing,
// unreadable, or undecodable blob leaves the engine at the default empty
// cart; persistence problems are logged, never returned.
func (e *Engine) Restore(ctx context.Context) {
	if e.store == nil {
		return
	}

	data, err := e.store.Get(ctx, e.key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			e.lg.Warn("Cart restore failed, starting empty", zap.Error(err))
		}
		return
	}

	e.mu.Lock()
	err = e.decodeLocked(data)
	e.mu.Unlock()
	if err != nil {
		e.lg.Warn("Stored cart state is invalid, starting empty", zap.Error(err))
	}
}

// AddItem merges quantity into an existing line for the product or appends a
// new line with the unit price locked from p.Price. Re-adding a product does
// not refresh its unit price. Quantity is not validated; callers are expected
// to pass positive values.
func (e *Engine) AddItem(p product.Product, quantity int) {
	e.mu.Lock()
	if i := e.indexOfLocked(p.ID); i >= 0 {
		item := &e.items[i]
		item.Quantity += quantity
		item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	} else {
		e.items = append(e.items, LineItem{
			ProductID: p.ID,
			Product:   p,
			Quantity:  quantity,
			UnitPrice: p.Price,
			Subtotal:  p.Price.Mul(decimal.NewFromInt(int64(quantity))),
		})
	}
	snap, data := e.commitLocked()
	e.mu.Unlock()

	e.afterMutation("add_item", snap, data)
}

// RemoveItem deletes the line for productID. Removing an absent product is a
// no-op.
func (e *Engine) RemoveItem(productID string) {
	e.mu.Lock()
	i := e.indexOfLocked(productID)
	if i < 0 {
		e.mu.Unlock()
		return
	}
	e.items = append(e.items[:i], e.items[i+1:]...)
	snap, data := e.commitLocked()
	e.mu.Unlock()

	e.afterMutation("remove_item", snap, data)
}

// UpdateQuantity sets the quantity for productID. A quantity of zero or less
// removes the line entirely; an unknown productID is a no-op.
func (e *Engine) UpdateQuantity(productID string, quantity int) {
	if quantity <= 0 {
		e.RemoveItem(productID)
		return
	}

	e.mu.Lock()
	i := e.indexOfLocked(productID)
	if i < 0 {
		e.mu.Unlock()
		return
	}
	item := &e.items[i]
	item.Quantity = quantity
	item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	snap, data := e.commitLocked()
	e.mu.Unlock()

	e.afterMutation("update_quantity", snap, data)
}

// Clear resets the cart to its initial state: no items, no discount, no
// selected address, and the pricing defaults the engine was constructed with.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.items = nil
	e.baseFee = e.defaults.DeliveryFee
	e.threshold = e.defaults.FreeDeliveryThreshold
	e.discount = decimal.Zero
	e.addressID = ""
	snap, data := e.commitLocked()
	e.mu.Unlock()

	e.afterMutation("clear", snap, data)
}

// SetDeliveryFee sets the configured base delivery fee. The effective fee
// still drops to zero once the subtotal reaches the free-delivery threshold.
func (e *Engine) SetDeliveryFee(fee decimal.Decimal) {
	e.mu.Lock()
	e.baseFee = fee
	snap, data := e.commitLocked()
	e.mu.Unlock()

	e.afterMutation("set_delivery_fee", snap, data)
}

// SetFreeDeliveryThreshold sets the subtotal at which delivery becomes free.
func (e *Engine) SetFreeDeliveryThreshold(threshold decimal.Decimal) {
	e.mu.Lock()
	e.threshold = threshold
	snap, data := e.commitLocked()
	e.mu.Unlock()

	e.afterMutation("set_free_delivery_threshold", snap, data)
}

// SetDiscount sets the flat discount subtracted from the total.
func (e *Engine) SetDiscount(discount decimal.Decimal) {
	e.mu.Lock()
	e.discount = discount
	snap, data := e.commitLocked()
	e.mu.Unlock()

	e.afterMutation("set_discount", snap, data)
}

// SetSelectedAddress records the delivery address reference. It has no
// pricing effect.
func (e *Engine) SetSelectedAddress(addressID string) {
	e.mu.Lock()
	e.addressID = addressID
	snap, data := e.commitLocked()
	e.mu.Unlock()

	e.afterMutation("set_selected_address", snap, data)
}

// ItemQuantity returns the quantity of the line for productID, or 0 when the
// product is not in the cart.
func (e *Engine) ItemQuantity(productID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i := e.indexOfLocked(productID); i >= 0 {
		return e.items[i].Quantity
	}
	return 0
}

// ItemCount returns the total unit count across all line items.
func (e *Engine) ItemCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, item := range e.items {
		n += item.Quantity
	}
	return n
}

// Snapshot returns a read-only copy of the current cart state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.snapshotLocked()
}

// Calculate recomputes the derived pricing fields from the current items and
// configuration and returns the resulting snapshot. Calling it repeatedly
// without intervening mutations yields identical results.
func (e *Engine) Calculate() Snapshot {
	return e.Snapshot()
}

// Subscribe registers fn to be invoked with the post-mutation snapshot after
// every state change. The returned func cancels the subscription.
func (e *Engine) Subscribe(fn func(Snapshot)) (cancel func()) {
	e.subMu.Lock()
	if e.subs == nil {
		e.subs = make(map[int]func(Snapshot))
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
}

// Close stops the background saver and flushes the latest pending state,
// best effort. It is a no-op for engines without a store.
func (e *Engine) Close(ctx context.Context) {
	if e.store == nil {
		return
	}
	e.closeOnce.Do(func() {
		close(e.done)
		<-e.stopped
		e.flush(ctx)
	})
}

func (e *Engine) indexOfLocked(productID string) int {
	for i := range e.items {
		if e.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (e *Engine) snapshotLocked() Snapshot {
	items := make([]LineItem, len(e.items))
	copy(items, e.items)

	subtotal, fee, total := computeTotals(e.items, e.baseFee, e.threshold, e.discount)

	return Snapshot{
		Items:                 items,
		Subtotal:              subtotal,
		DeliveryFee:           fee,
		FreeDeliveryThreshold: e.threshold,
		Discount:              e.discount,
		Total:                 total,
		SelectedAddressID:     e.addressID,
	}
}

// commitLocked captures the post-mutation snapshot and its serialized form
// while the state lock is still held, so concurrent mutations cannot
// interleave between a change and its persisted representation.
func (e *Engine) commitLocked() (Snapshot, []byte) {
	snap := e.snapshotLocked()

	var data []byte
	if e.store != nil {
		data = e.encodeLocked()
	}
	return snap, data
}

func (e *Engine) afterMutation(op string, snap Snapshot, data []byte) {
	e.metrics.recordMutation(op)
	e.scheduleSave(data)
	e.notify(snap)
}

func (e *Engine) notify(snap Snapshot) {
	e.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (e *Engine) scheduleSave(data []byte) {
	if e.store == nil {
		return
	}

	e.saveMu.Lock()
	e.pending = data
	e.saveMu.Unlock()

	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// saveLoop writes the latest pending state to the store, coalescing bursts of
// mutations within the configured delay. The final flush on Close happens
// outside this loop.
func (e *Engine) saveLoop() {
	defer close(e.stopped)

	for {
		select {
		case <-e.done:
			return
		case <-e.kick:
		}

		if e.saveDelay > 0 {
			timer := time.NewTimer(e.saveDelay)
			select {
			case <-e.done:
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		e.flush(ctx)
		cancel()
	}
}

// flush writes the pending state, if any. On failure it restores the state as
// pending (unless a newer one arrived) so a later save or Close can retry.
func (e *Engine) flush(ctx context.Context) {
	e.saveMu.Lock()
	data := e.pending
	e.pending = nil
	e.saveMu.Unlock()

	if data == nil {
		return
	}

	if err := e.store.Set(ctx, e.key, data); err != nil {
		e.lg.Warn("Cart save failed, keeping in-memory state", zap.Error(err))
		e.metrics.recordSaveFailure()

		e.saveMu.Lock()
		if e.pending == nil {
			e.pending = data
		}
		e.saveMu.Unlock()
	}
}

type engineMetrics struct {
	mutations    metric.Int64Counter
	saveFailures metric.Int64Counter
}

func newEngineMetrics(lg *zap.Logger) engineMetrics {
	meter := otel.Meter(meterName)

	var (
		m   engineMetrics
		err error
	)
	m.mutations, err = meter.Int64Counter("cart_mutations_total",
		metric.WithDescription("Total number of cart mutations applied"),
		metric.WithUnit("{mutation}"),
	)
	if err != nil {
		lg.Warn("Create cart_mutations_total counter", zap.Error(err))
	}

	m.saveFailures, err = meter.Int64Counter("cart_save_failures_total",
		metric.WithDescription("Total number of failed cart persistence writes"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		lg.Warn("Create cart_save_failures_total counter", zap.Error(err))
	}

	return m
}

func (m engineMetrics) recordMutation(op string) {
	if m.mutations == nil {
		return
	}
	m.mutations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("op", op),
	))
}

func (m engineMetrics) recordSaveFailure() {
	if m.saveFailures == nil {
		return
	}
	m.saveFailures.Add(context.Background(), 1)
}
