// Package badger provides embedded key-value persistence on BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/dukex/leadflow/pkg/persistence"
	json "github.com/goccy/go-json"
)

const (
	workflowPrefix     = "workflow/"
	statePrefix        = "state/"
	logPrefix          = "log/"
	leadPrefix         = "lead/"
	emailPrefix        = "email/"
	taskPrefix         = "task/"
	appointmentPrefix  = "appointment/"
	notificationPrefix = "notification/"

	sequenceKey       = "seq/records"
	sequenceBandwidth = 128

	maxConflictRetries = 100
)

// ErrTooManyConflicts is returned when a transaction keeps conflicting with concurrent writers.
var ErrTooManyConflicts = errors.New("too many transaction conflicts")

// Persistence implements persistence.Persistence on a BadgerDB instance.
type Persistence struct {
	db       *badgerdb.DB
	sequence *badgerdb.Sequence
	logger   *slog.Logger

	workflowRepo     *WorkflowRepository
	stateRepo        *ExecutionStateRepository
	actionLogRepo    *ActionLogRepository
	leadRepo         *LeadRepository
	emailRepo        *EmailRepository
	taskRepo         *TaskRepository
	appointmentRepo  *AppointmentRepository
	notificationRepo *NotificationRepository
}

// NewPersistence opens the database at path, a "badger://" prefix is accepted.
// An empty path keeps everything in memory.
func NewPersistence(_ context.Context, logger *slog.Logger, path string) (*Persistence, error) {
	path = strings.TrimPrefix(path, "badger://")

	options := badgerdb.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		options = options.WithInMemory(true)
	}

	db, err := badgerdb.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	sequence, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to open record sequence: %w", err)
	}

	p := &Persistence{
		db:       db,
		sequence: sequence,
		logger:   logger.With("module", "badger_persistence"),
	}

	p.workflowRepo = &WorkflowRepository{store: p}
	p.stateRepo = &ExecutionStateRepository{store: p}
	p.actionLogRepo = &ActionLogRepository{store: p}
	p.leadRepo = &LeadRepository{store: p}
	p.emailRepo = &EmailRepository{store: p}
	p.taskRepo = &TaskRepository{store: p}
	p.appointmentRepo = &AppointmentRepository{store: p}
	p.notificationRepo = &NotificationRepository{store: p}

	return p, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository { return p.workflowRepo }

func (p *Persistence) ExecutionStateRepository() persistence.ExecutionStateRepository {
	return p.stateRepo
}

func (p *Persistence) ActionLogRepository() persistence.ActionLogRepository { return p.actionLogRepo }

func (p *Persistence) LeadRepository() persistence.LeadRepository { return p.leadRepo }

func (p *Persistence) EmailRepository() persistence.EmailRepository { return p.emailRepo }

func (p *Persistence) TaskRepository() persistence.TaskRepository { return p.taskRepo }

func (p *Persistence) AppointmentRepository() persistence.AppointmentRepository {
	return p.appointmentRepo
}

func (p *Persistence) NotificationRepository() persistence.NotificationRepository {
	return p.notificationRepo
}

// HealthCheck fails once the database has been closed.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if p.db.IsClosed() {
		return errors.New("badger database is closed")
	}

	return nil
}

// Close releases the sequence and closes the database.
func (p *Persistence) Close(_ context.Context) error {
	err := p.sequence.Release()
	if err != nil {
		p.logger.Error("failed to release record sequence", "error", err)
	}

	err = p.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	return nil
}

// update runs fn in a read-write transaction, retrying when badger reports a conflict.
func (p *Persistence) update(ctx context.Context, fn func(txn *badgerdb.Txn) error) error {
	for range maxConflictRetries {
		err := p.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return ErrTooManyConflicts
}

// recordKey builds an ordered key for append-only records.
func (p *Persistence) recordKey(prefix string) ([]byte, error) {
	next, err := p.sequence.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate record key: %w", err)
	}

	return fmt.Appendf(nil, "%s%020d", prefix, next), nil
}

// load decodes the value at key into v. found is false when the key does not exist.
func load(txn *badgerdb.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return false, nil
		}

		return false, err
	}

	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, v)
	})
	if err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	return true, nil
}

func store(txn *badgerdb.Txn, key []byte, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	return txn.Set(key, value)
}

// scan decodes every value under prefix, in key order, and keeps those accepted by keep.
func scan[T any](db *badgerdb.DB, prefix string, keep func(*T) bool) ([]*T, error) {
	items := make([]*T, 0)

	err := db.View(func(txn *badgerdb.Txn) error {
		options := badgerdb.DefaultIteratorOptions
		options.Prefix = []byte(prefix)

		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := new(T)

			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, item)
			})
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", it.Item().Key(), err)
			}

			if keep == nil || keep(item) {
				items = append(items, item)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}
