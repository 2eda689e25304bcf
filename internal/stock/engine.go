// Package stock implements the inventory state machine: lifecycle
// transitions for devices and material lots, the transfer reservation
// protocol, and the quantity allocator both rely on.
package stock

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// Catalog resolves definition metadata. It is consulted only when items are
// received or proposed; the result is copied into the records. A nil
// definition with a nil error means the definition does not exist.
type Catalog interface {
	GetDefinition(ctx context.Context, id int64) (*model.Definition, error)
}

// Actor is the user performing an operation. Permissions are checked
// upstream; the engine only records who acted.
type Actor struct {
	ID   int64
	Name string
}

// Line is one entry of a multi-line request. Device lines name the item by
// ID or serial; material lines name a definition and a quantity.
type Line struct {
	Kind         model.ItemKind `json:"kind"`
	ItemID       string         `json:"item_id,omitempty"`
	Serial       string         `json:"serial,omitempty"`
	DefinitionID int64          `json:"definition_id,omitempty"`
	Quantity     int            `json:"quantity,omitempty"`
}

// ReceiveLine is one entry of a Receive request.
type ReceiveLine struct {
	Kind         model.ItemKind `json:"kind"`
	DefinitionID int64          `json:"definition_id"`
	Serial       string         `json:"serial,omitempty"`
	Quantity     int            `json:"quantity,omitempty"`
}

// Engine applies stock operations. Every operation runs in one database
// transaction and either applies completely or not at all.
type Engine struct {
	db      *db.DB
	catalog Catalog
	now     func() time.Time
	metrics *Metrics
	log     *slog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records operation counts and durations.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger overrides the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine over the given database. If catalog is nil the
// local definitions table is used.
func New(database *db.DB, catalog Catalog, opts ...Option) *Engine {
	if catalog == nil {
		catalog = &store.Catalog{DB: database}
	}
	e := &Engine{
		db:      database,
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
		log:     slog.Default(),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) newID(t time.Time) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), e.entropy).String()
}

// run executes fn and the resulting writes inside one transaction.
func (e *Engine) run(ctx context.Context, op string, actor Actor, fn func(ctx context.Context, p *plan) error) (*plan, error) {
	start := time.Now()

	var p *plan
	err := func() error {
		if actor.ID <= 0 {
			return errorf(KindInvalidInput, "actor is required")
		}
		return db.RunInTx(ctx, e.db, func(tx *db.Tx) error {
			p = e.newPlan(tx, actor)
			if err := fn(ctx, p); err != nil {
				return err
			}
			return p.apply(ctx)
		})
	}()

	e.metrics.observe(op, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	e.log.Info("stock operation committed", "op", op, "actor", actor.ID,
		"items", len(p.order), "entries", len(p.entries))
	return p, nil
}

// plan collects the rows an operation reads and the writes it intends to
// make. Validation runs against the in-memory rows; nothing is written
// until apply.
type plan struct {
	e     *Engine
	tx    *db.Tx
	actor Actor
	now   time.Time

	items   map[string]*model.Item
	order   []string
	created map[string]bool
	dirty   map[string]bool
	dest    map[destKey]*model.Item
	owners  map[int64]*model.Owner
	entries []model.LedgerEntry

	proposal *model.Proposal // inserted before any item
	settle   *model.Proposal // settled after the ledger is written
}

type destKey struct {
	definitionID int64
	ownerID      int64
	status       model.ItemStatus
}

// snapshot is the catalog data copied into every item and line.
type snapshot struct {
	DefinitionID int64
	Name         string
	Category     string
	Unit         string
}

func definitionSnapshot(d *model.Definition) snapshot {
	return snapshot{DefinitionID: d.ID, Name: d.Name, Category: d.Category, Unit: d.Unit}
}

func itemSnapshot(it *model.Item) snapshot {
	return snapshot{DefinitionID: it.DefinitionID, Name: it.Name, Category: it.Category, Unit: it.Unit}
}

func (e *Engine) newPlan(tx *db.Tx, actor Actor) *plan {
	return &plan{
		e:       e,
		tx:      tx,
		actor:   actor,
		now:     e.now(),
		items:   make(map[string]*model.Item),
		created: make(map[string]bool),
		dirty:   make(map[string]bool),
		dest:    make(map[destKey]*model.Item),
		owners:  make(map[int64]*model.Owner),
	}
}

// track returns the plan's copy of a row, registering it on first sight so
// that later reads observe earlier in-memory changes.
func (p *plan) track(it *model.Item) *model.Item {
	if cur, ok := p.items[it.ID]; ok {
		return cur
	}
	p.items[it.ID] = it
	p.order = append(p.order, it.ID)
	return it
}

func (p *plan) create(it *model.Item) *model.Item {
	it.CreatedAt, it.UpdatedAt = p.now, p.now
	p.created[it.ID] = true
	return p.track(it)
}

func (p *plan) touch(it *model.Item) {
	it.UpdatedAt = p.now
	p.dirty[it.ID] = true
}

func (p *plan) record(e model.LedgerEntry) {
	e.ActorID = p.actor.ID
	e.CreatedAt = p.now
	p.entries = append(p.entries, e)
}

// owner loads an active owner. wantType may be empty to accept either type.
func (p *plan) owner(ctx context.Context, id int64, wantType string) (*model.Owner, error) {
	o, ok := p.owners[id]
	if !ok {
		var err error
		o, err = store.GetOwner(ctx, p.tx, id)
		if err != nil {
			return nil, err
		}
		if o == nil || o.DeletedAt != nil {
			label := wantType
			if label == "" {
				label = "owner"
			}
			return nil, errorf(KindNotFound, "%s %d not found", label, id)
		}
		p.owners[id] = o
	}
	if wantType != "" && o.Type != wantType {
		return nil, errorf(KindInvalidInput, "owner %d is a %s, not a %s", id, o.Type, wantType)
	}
	return o, nil
}

// item loads and locks a row by ID.
func (p *plan) item(ctx context.Context, id string) (*model.Item, error) {
	if it, ok := p.items[id]; ok {
		return it, nil
	}
	it, err := store.LockItem(ctx, p.tx, id)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, errorf(KindNotFound, "item %s not found", id)
	}
	return p.track(it), nil
}

// device resolves a device line by item ID or, failing that, by serial.
func (p *plan) device(ctx context.Context, l Line) (*model.Item, error) {
	var it *model.Item
	var err error
	if l.ItemID != "" {
		it, err = p.item(ctx, l.ItemID)
	} else {
		it, err = store.FindLiveDevice(ctx, p.tx, l.Serial)
		if err == nil && it == nil {
			err = errorf(KindNotFound, "no device with serial %s", l.Serial)
		}
		if it != nil {
			it = p.track(it)
		}
	}
	if err != nil {
		return nil, err
	}
	if it.Kind != model.KindDevice {
		return nil, errorf(KindInvalidInput, "item %s is not a device", it.ID)
	}
	return it, nil
}

// lots returns the material lots of a definition held by owner in one of
// the given statuses, locked for the rest of the transaction.
func (p *plan) lots(ctx context.Context, definitionID, ownerID int64, statuses ...model.ItemStatus) ([]*model.Item, error) {
	rows, err := store.ListItems(ctx, p.tx, store.ItemFilter{
		Kind:         model.KindMaterial,
		DefinitionID: definitionID,
		OwnerID:      ownerID,
		Statuses:     statuses,
		ForUpdate:    true,
	})
	if err != nil {
		return nil, err
	}
	lots := make([]*model.Item, len(rows))
	for i := range rows {
		lots[i] = p.track(&rows[i])
	}
	return lots, nil
}

// reservedLots returns the material lots of a definition held by a proposal.
func (p *plan) reservedLots(ctx context.Context, proposalID string, definitionID int64) ([]*model.Item, error) {
	rows, err := store.ListItems(ctx, p.tx, store.ItemFilter{
		Kind:         model.KindMaterial,
		DefinitionID: definitionID,
		ReservedBy:   proposalID,
		ForUpdate:    true,
	})
	if err != nil {
		return nil, err
	}
	lots := make([]*model.Item, len(rows))
	for i := range rows {
		lots[i] = p.track(&rows[i])
	}
	return lots, nil
}

// allocate runs the allocator over the current in-memory lots.
func (p *plan) allocate(lots []*model.Item, requested int) ([]*model.Item, []int, error) {
	values := make([]model.Item, len(lots))
	byID := make(map[string]*model.Item, len(lots))
	for i, lot := range lots {
		values[i] = *lot
		byID[lot.ID] = lot
	}
	draws, err := Allocate(values, requested)
	if err != nil {
		return nil, nil, err
	}
	src := make([]*model.Item, len(draws))
	qty := make([]int, len(draws))
	for i, d := range draws {
		src[i], qty[i] = byID[d.ItemID], d.Quantity
	}
	return src, qty, nil
}

// destLot returns the lot that receives material for owner in status: the
// oldest non-empty unreserved lot of the definition, or a new empty one.
func (p *plan) destLot(ctx context.Context, snap snapshot, owner *model.Owner, status model.ItemStatus) (*model.Item, error) {
	key := destKey{snap.DefinitionID, owner.ID, status}
	if lot, ok := p.dest[key]; ok {
		return lot, nil
	}

	lots, err := p.lots(ctx, snap.DefinitionID, owner.ID, status)
	if err != nil {
		return nil, err
	}
	var lot *model.Item
	for _, l := range lots {
		if !l.Reserved && l.Quantity > 0 {
			lot = l
			break
		}
	}
	if lot == nil {
		lot = p.create(p.newLot(snap, owner, status, 0))
	}
	p.dest[key] = lot
	return lot, nil
}

func (p *plan) newLot(snap snapshot, owner *model.Owner, status model.ItemStatus, qty int) *model.Item {
	def := &model.Definition{ID: snap.DefinitionID, Name: snap.Name, Category: snap.Category, Unit: snap.Unit}
	return store.NewLot(p.e.newID(p.now), def, owner.ID, owner.Type, status, qty, p.now)
}

// moveMaterial draws requested units from lots into the destination lot,
// recording one ledger entry per source lot.
func (p *plan) moveMaterial(ctx context.Context, action model.Action, lots []*model.Item, requested int,
	from, to *model.Owner, destStatus model.ItemStatus) error {
	src, qty, err := p.allocate(lots, requested)
	if err != nil {
		return err
	}
	dest, err := p.destLot(ctx, itemSnapshot(src[0]), to, destStatus)
	if err != nil {
		return err
	}
	for i, lot := range src {
		lot.Quantity -= qty[i]
		dest.Quantity += qty[i]
		p.touch(lot)
		p.record(model.LedgerEntry{
			ItemID:            lot.ID,
			CounterpartItemID: dest.ID,
			Action:            action,
			FromOwnerID:       &from.ID,
			ToOwnerID:         &to.ID,
			QuantityDelta:     -qty[i],
		})
	}
	p.touch(dest)
	return nil
}

// apply writes everything the plan collected.
func (p *plan) apply(ctx context.Context) error {
	if p.proposal != nil {
		if err := store.InsertProposal(ctx, p.tx, p.proposal); err != nil {
			return err
		}
	}

	for _, id := range p.order {
		it := p.items[id]
		switch {
		case p.created[id]:
			if err := store.InsertItem(ctx, p.tx, it); err != nil {
				if db.IsUniqueViolation(err) && it.Kind == model.KindDevice {
					return errorf(KindDuplicateSerial, "serial %s is already in circulation", it.Serial)
				}
				return err
			}
		case p.dirty[id]:
			if err := store.UpdateItem(ctx, p.tx, it); err != nil {
				return err
			}
		}
	}

	for i := range p.entries {
		if err := store.AppendLedger(ctx, p.tx, &p.entries[i]); err != nil {
			return err
		}
	}

	if p.settle != nil {
		if err := store.SettleProposal(ctx, p.tx, p.settle); err != nil {
			return err
		}
	}
	return nil
}

// touched returns copies of every row the operation created or changed.
func (p *plan) touched() []model.Item {
	var out []model.Item
	for _, id := range p.order {
		if p.created[id] || p.dirty[id] {
			out = append(out, *p.items[id])
		}
	}
	return out
}

// validateLines checks the shape of a request before anything is read and
// returns a normalized copy of the lines.
func validateLines(in []Line) ([]Line, error) {
	if len(in) == 0 {
		return nil, errorf(KindInvalidInput, "at least one line is required")
	}
	lines := slices.Clone(in)
	devices := make(map[string]bool)
	materials := make(map[int64]bool)
	for i := range lines {
		l := &lines[i]
		l.ItemID = strings.TrimSpace(l.ItemID)
		l.Serial = strings.TrimSpace(l.Serial)
		switch l.Kind {
		case model.KindDevice:
			if l.ItemID == "" && l.Serial == "" {
				return nil, errorf(KindInvalidInput, "line %d: device needs an item id or serial", i+1)
			}
			if l.Quantity != 0 && l.Quantity != 1 {
				return nil, errorf(KindInvalidInput, "line %d: device quantity must be 1", i+1)
			}
			key := "id:" + l.ItemID
			if l.ItemID == "" {
				key = "serial:" + l.Serial
			}
			if devices[key] {
				return nil, errorf(KindInvalidInput, "line %d: device listed twice", i+1)
			}
			devices[key] = true
		case model.KindMaterial:
			if l.DefinitionID <= 0 {
				return nil, errorf(KindInvalidInput, "line %d: material needs a definition id", i+1)
			}
			if l.Quantity <= 0 {
				return nil, errorf(KindInvalidInput, "line %d: quantity must be positive", i+1)
			}
			if materials[l.DefinitionID] {
				return nil, errorf(KindInvalidInput, "line %d: definition %d listed twice", i+1, l.DefinitionID)
			}
			materials[l.DefinitionID] = true
		default:
			return nil, errorf(KindInvalidInput, "line %d: unknown kind %q", i+1, l.Kind)
		}
	}
	return lines, nil
}

// lineError prefixes a domain error with its line number.
func lineError(i int, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Msg: fmt.Sprintf("line %d: %s", i+1, e.Error())}
	}
	return err
}
