package ordering

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"coursecraft_backend/pkg/logger"
	"coursecraft_backend/pkg/monitoring"
	"coursecraft_backend/pkg/tracing"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrParentNotFound = errors.New("ordering: parent row not found")
	// ErrConcurrentChange is returned when a step touched no row because the
	// sibling set changed under the transaction. It is retried.
	ErrConcurrentChange = errors.New("ordering: sibling set changed concurrently")
)

// Scope identifies one sibling set: the rows of Table whose ParentColumn
// equals ParentID. ParentTable is locked for the duration of a change.
type Scope struct {
	Table        string
	ParentColumn string
	ParentTable  string
	ParentID     uint
}

func CourseModules(courseID uint) Scope {
	return Scope{Table: "modules", ParentColumn: "course_id", ParentTable: "courses", ParentID: courseID}
}

func ModuleLessons(moduleID uint) Scope {
	return Scope{Table: "lessons", ParentColumn: "module_id", ParentTable: "modules", ParentID: moduleID}
}

func (s Scope) String() string {
	return fmt.Sprintf("%s[%s=%d]", s.Table, s.ParentColumn, s.ParentID)
}

type Manager struct {
	DB         *gorm.DB
	MaxRetries int
}

func NewManager(db *gorm.DB, maxRetries int) *Manager {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Manager{DB: db, MaxRetries: maxRetries}
}

// Run executes fn in one transaction and retries the whole unit when it fails
// on a uniqueness conflict, a deadlock or a concurrent sibling change. Nothing
// from a failed run is visible to readers.
func (m *Manager) Run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	ctx, span := tracing.Tracer.Start(ctx, "ordering."+op)
	defer span.End()

	var err error
	for attempt := 0; attempt <= m.MaxRetries; attempt++ {
		err = m.DB.WithContext(ctx).Transaction(fn)
		if err == nil || !IsRetryable(err) {
			break
		}
		span.SetAttributes(attribute.Int("ordering.retries", attempt+1))
		monitoring.OrderingRetries.WithLabelValues(op).Inc()
		logger.Log.Warn("ordering conflict, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// IsRetryable reports whether err is a conflict that a fresh transaction can
// resolve.
func IsRetryable(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrConcurrentChange) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062, 1205, 1213: // duplicate entry, lock wait timeout, deadlock
			return true
		}
	}
	return false
}

// Lock takes row locks on the parents of scopes in ascending id order per
// table, so two transactions touching the same parents never deadlock on
// each other.
func Lock(tx *gorm.DB, scopes ...Scope) error {
	sorted := make([]Scope, len(scopes))
	copy(sorted, scopes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ParentTable != sorted[j].ParentTable {
			return sorted[i].ParentTable < sorted[j].ParentTable
		}
		return sorted[i].ParentID < sorted[j].ParentID
	})
	for _, s := range sorted {
		var ids []uint
		err := tx.Table(s.ParentTable).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", s.ParentID).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("%w: %s", ErrParentNotFound, s)
		}
	}
	return nil
}

// Siblings loads the current positions of a sibling set.
func Siblings(tx *gorm.DB, s Scope) ([]Item, error) {
	var items []Item
	err := tx.Table(s.Table).
		Select("id, ordering").
		Where(s.ParentColumn+" = ?", s.ParentID).
		Order("ordering asc, id asc").
		Scan(&items).Error
	return items, err
}

func execute(tx *gorm.DB, s Scope, steps []Step) error {
	for _, st := range steps {
		res := tx.Table(s.Table).
			Where("id = ? AND "+s.ParentColumn+" = ? AND ordering = ?", st.ID, s.ParentID, st.From).
			Update("ordering", st.To)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrConcurrentChange
		}
	}
	return nil
}

// dense locks the parent, loads the siblings and repairs gaps left by older
// writers before any positional arithmetic happens.
func dense(tx *gorm.DB, s Scope) ([]Item, error) {
	if err := Lock(tx, s); err != nil {
		return nil, err
	}
	items, err := Siblings(tx, s)
	if err != nil {
		return nil, err
	}
	if Dense(items) {
		return items, nil
	}
	steps := PlanCompact(items)
	logger.Log.Warn("compacting sparse sibling set", zap.String("scope", s.String()), zap.Int("steps", len(steps)))
	if err := execute(tx, s, steps); err != nil {
		return nil, err
	}
	return Apply(items, steps)
}

// InsertTx opens a slot at desired (nil appends) and calls create with the
// final position. create must write the new row inside tx.
func InsertTx(tx *gorm.DB, s Scope, desired *int, create func(position int) error) (int, error) {
	items, err := dense(tx, s)
	if err != nil {
		return 0, err
	}
	pos := PlanAppend(items)
	var steps []Step
	if desired != nil {
		pos, steps = PlanInsert(items, *desired)
	}
	if err := execute(tx, s, steps); err != nil {
		return 0, err
	}
	if err := create(pos); err != nil {
		return 0, err
	}
	return pos, nil
}

// MoveTx moves id to desired, clamped to the sibling count.
func MoveTx(tx *gorm.DB, s Scope, id uint, desired int) (int, error) {
	items, err := dense(tx, s)
	if err != nil {
		return 0, err
	}
	_, to, steps, err := PlanMove(items, id, desired)
	if err != nil {
		return 0, err
	}
	if err := execute(tx, s, steps); err != nil {
		return 0, err
	}
	return to, nil
}

// RemoveTx calls remove to delete id's row and then closes the gap.
func RemoveTx(tx *gorm.DB, s Scope, id uint, remove func() error) error {
	items, err := dense(tx, s)
	if err != nil {
		return err
	}
	steps, err := PlanRemove(items, id)
	if err != nil {
		return err
	}
	if err := remove(); err != nil {
		return err
	}
	return execute(tx, s, steps)
}

// CompactTx renumbers a sibling set to 1..N.
func CompactTx(tx *gorm.DB, s Scope) error {
	_, err := dense(tx, s)
	return err
}

func (m *Manager) Insert(ctx context.Context, s Scope, desired *int, create func(tx *gorm.DB, position int) error) (int, error) {
	var pos int
	err := m.Run(ctx, "insert", func(tx *gorm.DB) error {
		p, err := InsertTx(tx, s, desired, func(position int) error {
			return create(tx, position)
		})
		pos = p
		return err
	})
	return pos, err
}

func (m *Manager) Move(ctx context.Context, s Scope, id uint, desired int) (int, error) {
	var pos int
	err := m.Run(ctx, "move", func(tx *gorm.DB) error {
		p, err := MoveTx(tx, s, id, desired)
		pos = p
		return err
	})
	return pos, err
}

func (m *Manager) Remove(ctx context.Context, s Scope, id uint, remove func(tx *gorm.DB) error) error {
	return m.Run(ctx, "remove", func(tx *gorm.DB) error {
		return RemoveTx(tx, s, id, func() error { return remove(tx) })
	})
}

func (m *Manager) Compact(ctx context.Context, s Scope) error {
	return m.Run(ctx, "compact", func(tx *gorm.DB) error {
		return CompactTx(tx, s)
	})
}
