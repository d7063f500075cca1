package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getmockd/odatad/pkg/entity"
	"github.com/getmockd/odatad/pkg/logging"
	"github.com/getmockd/odatad/pkg/mutation"
	"github.com/getmockd/odatad/pkg/query"
	"github.com/getmockd/odatad/pkg/seed"
	"github.com/getmockd/odatad/pkg/store"
	"github.com/getmockd/odatad/pkg/validation"
)

// Bridge maps transport-agnostic requests onto the query and mutation
// engines. Reads run against one store snapshot; writes are validated
// against the payload schema, decoded, and applied by the mutation engine.
// Every operation fires one Observer callback.
type Bridge struct {
	store       *store.Store
	model       *entity.Model
	validator   *validation.Validator
	mutations   *mutation.Engine
	observer    Observer
	log         *slog.Logger
	maxPageSize int
}

// UnknownSet is the set name observers receive for requests naming a set
// the model does not have.
const UnknownSet = "$unknown"

// Option configures a Bridge.
type Option func(*Bridge)

// WithObserver sets the observer notified after every operation.
func WithObserver(o Observer) Option {
	return func(b *Bridge) {
		if o != nil {
			b.observer = o
		}
	}
}

// WithLogger sets the logger of the bridge and its mutation engine.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// WithMaxPageSize caps the number of entities a list returns in one page.
// Zero disables server-driven paging.
func WithMaxPageSize(n int) Option {
	return func(b *Bridge) {
		b.maxPageSize = n
	}
}

// NewBridge creates a Bridge over s for the default model.
func NewBridge(s *store.Store, opts ...Option) (*Bridge, error) {
	if s == nil {
		panic("resource.NewBridge: store must not be nil")
	}
	b := &Bridge{
		store:    s,
		model:    entity.DefaultModel(),
		observer: NoopObserver{},
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxPageSize < 0 {
		return nil, fmt.Errorf("max page size must not be negative, got %d", b.maxPageSize)
	}

	v, err := validation.NewValidator(b.model)
	if err != nil {
		return nil, fmt.Errorf("building payload validator: %w", err)
	}
	b.validator = v
	b.mutations = mutation.New(s, mutation.WithLogger(b.log))
	return b, nil
}

// Model returns the entity model the bridge serves.
func (b *Bridge) Model() *entity.Model {
	return b.model
}

// Counts returns the number of entities per set.
func (b *Bridge) Counts() map[string]int {
	return b.store.Counts()
}

// Reset replaces every entity with those of d in one transaction. On error
// the store is unchanged.
func (b *Bridge) Reset(d seed.Dataset) error {
	if err := seed.Reset(b.store, d); err != nil {
		return err
	}
	b.log.Info("store reset", "customers", len(d.Customers), "orders", len(d.Orders))
	return nil
}

// Execute performs one operation. It never returns nil.
func (b *Bridge) Execute(ctx context.Context, req *OperationRequest) *OperationResult {
	if req == nil {
		return &OperationResult{
			Status: StatusError,
			Error:  errors.New("operation request must not be nil"),
		}
	}
	if _, ok := b.model.Lookup(req.Set); !ok {
		err := &entity.NotFoundError{Set: req.Set}
		b.observer.OnError(UnknownSet, req.Action, err)
		return &OperationResult{Status: StatusNotFound, Error: err}
	}
	if err := ctx.Err(); err != nil {
		b.observer.OnError(req.Set, req.Action, err)
		return &OperationResult{Status: StatusError, Error: err}
	}

	var res *OperationResult
	switch req.Action {
	case ActionList:
		res = b.executeList(req)
	case ActionGet:
		res = b.executeGet(req)
	case ActionCreate:
		res = b.executeCreate(req)
	case ActionReplace:
		res = b.executeReplace(req)
	case ActionPatch:
		res = b.executePatch(req)
	case ActionDelete:
		res = b.executeDelete(req)
	case ActionLink:
		res = b.executeLink(req)
	default:
		res = &OperationResult{Status: StatusError, Error: fmt.Errorf("unsupported action: %s", req.Action)}
	}

	if res.Error != nil {
		b.observer.OnError(req.Set, req.Action, res.Error)
	}
	return res
}

func (b *Bridge) executeList(req *OperationRequest) *OperationResult {
	start := time.Now()
	t, _ := b.model.Lookup(req.Set)

	opts, err := query.ParseOptions(req.Query, t, b.model)
	if err != nil {
		return errorToResult(err)
	}
	opts.MaxPageSize = b.maxPageSize

	res, err := query.Evaluate(b.store.Snapshot(), req.Set, opts)
	if err != nil {
		return errorToResult(err)
	}

	b.observer.OnList(req.Set, len(res.Rows()), time.Since(start))
	return &OperationResult{Status: StatusSuccess, List: res}
}

func (b *Bridge) executeGet(req *OperationRequest) *OperationResult {
	start := time.Now()
	if err := requireKey(req); err != nil {
		return errorToResult(err)
	}
	t, _ := b.model.Lookup(req.Set)

	opts, err := query.ParseOptions(req.Query, t, b.model)
	if err != nil {
		return errorToResult(err)
	}
	res, err := query.EvaluateKey(b.store.Snapshot(), req.Set, req.Key, opts)
	if err != nil {
		return errorToResult(err)
	}
	if len(res.Entities) == 0 {
		return errorToResult(&entity.NotFoundError{Set: req.Set, Key: req.Key})
	}

	b.observer.OnRead(req.Set, req.Key, time.Since(start))
	return &OperationResult{Status: StatusSuccess, Key: req.Key, Entity: res.Entities[0]}
}

func (b *Bridge) executeCreate(req *OperationRequest) *OperationResult {
	start := time.Now()
	if err := b.validator.Validate(req.Set, validation.ModeCreate, req.Data).Err(); err != nil {
		return errorToResult(err)
	}
	e, err := entity.Decode(req.Set, req.Data)
	if err != nil {
		return errorToResult(err)
	}
	created, err := b.mutations.Create(e)
	if err != nil {
		return errorToResult(err)
	}

	b.observer.OnCreate(req.Set, created.Key(), time.Since(start))
	return &OperationResult{Status: StatusCreated, Key: created.Key(), Entity: entity.Encode(created)}
}

func (b *Bridge) executeReplace(req *OperationRequest) *OperationResult {
	start := time.Now()
	if err := requireKey(req); err != nil {
		return errorToResult(err)
	}
	if err := b.validator.Validate(req.Set, validation.ModeReplace, req.Data).Err(); err != nil {
		return errorToResult(err)
	}
	e, err := entity.Decode(req.Set, req.Data)
	if err != nil {
		return errorToResult(err)
	}
	replaced, err := b.mutations.Replace(req.Set, req.Key, e)
	if err != nil {
		return errorToResult(err)
	}

	b.observer.OnUpdate(req.Set, req.Key, time.Since(start))
	return &OperationResult{Status: StatusSuccess, Key: req.Key, Entity: entity.Encode(replaced)}
}

func (b *Bridge) executePatch(req *OperationRequest) *OperationResult {
	start := time.Now()
	if err := requireKey(req); err != nil {
		return errorToResult(err)
	}
	if err := b.validator.Validate(req.Set, validation.ModePatch, req.Data).Err(); err != nil {
		return errorToResult(err)
	}
	p, err := entity.DecodePatch(req.Set, req.Data)
	if err != nil {
		return errorToResult(err)
	}
	patched, err := b.mutations.Patch(req.Set, req.Key, p)
	if err != nil {
		return errorToResult(err)
	}

	b.observer.OnUpdate(req.Set, req.Key, time.Since(start))
	return &OperationResult{Status: StatusSuccess, Key: req.Key, Entity: entity.Encode(patched)}
}

// executeDelete succeeds for any key. A non-positive key cannot name an
// entity, so there is nothing to remove.
func (b *Bridge) executeDelete(req *OperationRequest) *OperationResult {
	start := time.Now()
	if req.Key > 0 {
		if _, err := b.mutations.Delete(req.Set, req.Key); err != nil {
			return errorToResult(err)
		}
	}

	b.observer.OnDelete(req.Set, req.Key, time.Since(start))
	return &OperationResult{Status: StatusNoContent, Key: req.Key}
}

func (b *Bridge) executeLink(req *OperationRequest) *OperationResult {
	start := time.Now()
	if err := requireKey(req); err != nil {
		return errorToResult(err)
	}
	t, _ := b.model.Lookup(req.Set)
	nav, ok := t.Navigation(req.Navigation)
	if !ok {
		return errorToResult(entity.Invalidf(req.Navigation, "%s has no navigation property %q", t.Name, req.Navigation))
	}

	relatedID, err := linkTarget(req.Data, nav)
	if err != nil {
		return errorToResult(err)
	}
	if err := b.mutations.Link(req.Set, req.Key, nav.Name, relatedID); err != nil {
		return errorToResult(err)
	}

	b.observer.OnLink(req.Set, req.Key, nav.Name, time.Since(start))
	return &OperationResult{Status: StatusNoContent, Key: req.Key}
}

// linkTarget reads the key of the entity a $ref body points to and checks
// that it lives in the navigation's target set.
func linkTarget(data map[string]any, nav entity.Navigation) (int64, error) {
	raw, ok := data[LinkTarget]
	if !ok {
		return 0, entity.Invalidf(LinkTarget, "is required")
	}
	ref, ok := raw.(string)
	if !ok {
		return 0, entity.Invalidf(LinkTarget, "must be an entity reference string such as %q", nav.Target+"(1)")
	}
	set, key, err := entity.ParseEntityRef(ref)
	if err != nil {
		return 0, entity.Invalidf(LinkTarget, "%v", err)
	}
	if set != nav.Target {
		return 0, entity.Invalidf(LinkTarget, "must reference %s, got %s", nav.Target, set)
	}
	return key, nil
}

func requireKey(req *OperationRequest) error {
	if req.Key <= 0 {
		return entity.Invalidf(entity.KeyProperty, "a positive key is required for %s operations", req.Action)
	}
	return nil
}

// errorToResult converts a domain error to an OperationResult with the appropriate status.
func errorToResult(err error) *OperationResult {
	switch entity.CodeOf(err) {
	case entity.CodeNotFound:
		return &OperationResult{Status: StatusNotFound, Error: err}
	case entity.CodeConflict:
		return &OperationResult{Status: StatusConflict, Error: err}
	case entity.CodeInvalidInput:
		return &OperationResult{Status: StatusValidationError, Error: err}
	default:
		return &OperationResult{Status: StatusError, Error: err}
	}
}
