package selection

import (
	"errors"

	"go.uber.org/zap"

	"github.com/joeblew999/plat-parcels/internal/feature"
)

// Controller is the state object behind one map widget. It owns the
// selection mode, the individual engine, the group machine and the
// surface marks, and reads features from a Collection it never mutates.
type Controller struct {
	mode   Mode
	coll   *feature.Collection
	marks  *Marks
	engine *Engine
	groups *GroupMachine
	sync   Syncer
	log    *zap.Logger
}

// NewController returns a controller in individual mode.
func NewController(coll *feature.Collection, sync Syncer, log *zap.Logger) *Controller {
	if sync == nil {
		sync = nopSyncer{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	marks := NewMarks()
	c := &Controller{
		mode:   Individual,
		coll:   coll,
		marks:  marks,
		engine: NewEngine(marks, sync),
		groups: NewGroupMachine(marks, sync),
		sync:   sync,
		log:    log,
	}
	sync.SetMode(Individual)
	return c
}

// Mode returns the current selection mode.
func (c *Controller) Mode() Mode { return c.mode }

// Collection returns the features the controller selects from.
func (c *Controller) Collection() *feature.Collection { return c.coll }

// Engine exposes the individual selection engine.
func (c *Controller) Engine() *Engine { return c.engine }

// Groups exposes the group state machine.
func (c *Controller) Groups() *GroupMachine { return c.groups }

// Marks exposes the surface feature-state table.
func (c *Controller) Marks() *Marks { return c.marks }

// SetMode switches mode, discarding all selection state. Entering group
// mode starts selecting Group 1. Setting the current mode is a no-op.
func (c *Controller) SetMode(mode Mode) error {
	if mode != Individual && mode != Group {
		return ErrUnknownMode
	}
	if mode == c.mode {
		return nil
	}
	c.engine.ClearAll()
	c.groups.Reset(false)
	c.mode = mode
	c.sync.SetMode(mode)
	switch mode {
	case Group:
		_ = c.groups.Start()
	case Individual:
		c.sync.SyncIndividual(nil)
	}
	c.log.Debug("selection mode changed", zap.String("mode", string(mode)))
	return nil
}

// Click handles a surface click on the feature with the given ID.
func (c *Controller) Click(id int64) error {
	f, ok := c.coll.ByID(id)
	if !ok {
		return c.reject("click", ErrUnknownFeature, zap.Int64("id", id))
	}
	return c.clickFeature(f)
}

// ClickFeatureID handles a click addressed by business key.
func (c *Controller) ClickFeatureID(key string) error {
	f, ok := c.coll.ByFeatureID(key)
	if !ok {
		return c.reject("click", ErrUnknownFeature, zap.String("feature_id", key))
	}
	return c.clickFeature(f)
}

func (c *Controller) clickFeature(f feature.Feature) error {
	var err error
	if c.mode == Group {
		err = c.groups.HandleClick(f)
	} else {
		err = c.engine.HandleClick(f)
	}
	if err != nil {
		return c.reject("click", err,
			zap.String("feature_id", f.FeatureID),
			zap.String("overlay", string(f.OverlayType)))
	}
	return nil
}

// Confirm confirms the active group.
func (c *Controller) Confirm() error {
	if c.mode != Group {
		return c.reject("confirm", ErrWrongMode)
	}
	if err := c.groups.Confirm(); err != nil {
		return c.reject("confirm", err, zap.Stringer("state", c.groups.State()))
	}
	return nil
}

// Reset discards both groups and restarts Group 1 selection.
func (c *Controller) Reset() error {
	if c.mode != Group {
		return c.reject("reset", ErrWrongMode)
	}
	c.groups.Reset(true)
	return nil
}

// Compare sends both confirmed groups to the host.
func (c *Controller) Compare() error {
	if c.mode != Group {
		return c.reject("compare", ErrWrongMode)
	}
	if err := c.groups.Compare(); err != nil {
		return c.reject("compare", err, zap.Stringer("state", c.groups.State()))
	}
	return nil
}

// reject logs a rejected operation as a warning and returns err unchanged.
func (c *Controller) reject(op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("op", op), zap.String("mode", string(c.mode)), zap.Error(err))
	c.log.Warn("selection operation rejected", fields...)
	return err
}

// IsRejection reports whether err is a non-fatal rejected operation.
func IsRejection(err error) bool {
	for _, r := range []error{
		ErrOverlayMismatch, ErrClaimedByOtherGroup, ErrEmptyGroup, ErrNotRouted,
		ErrUnknownFeature, ErrInvalidTransition, ErrWrongMode,
	} {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}
