package metrics

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db            *sql.DB
	logger        logger.Logger
	cfg           Config
	mu            sync.Mutex
	buffer        []*DecisionSnapshot
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, pathError(ErrStorageInit, "create_directory", cfg.DBPath, err)
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, pathError(ErrStorageInit, "open_database", cfg.DBPath, err)
	}

	backupDir := cfg.BackupDir
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(cfg.DBPath), "backups")
	}
	if err := ValidateAndUpdateSchema(db, backupDir, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("batch_timeout", cfg.BatchTimeout).
		Msg("Decision history initialized")

	repo := &repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		buffer:        make([]*DecisionSnapshot, 0, max(cfg.BatchSize, 1)),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.BatchSize > 1 && cfg.BatchTimeout > 0 {
		repo.flushTicker = time.NewTicker(cfg.BatchTimeout)
		go repo.flusher()
	} else {
		close(repo.flushDoneChan)
	}

	return repo, nil
}

// Record buffers snapshot and writes the buffer once it holds BatchSize
// entries. A BatchSize of 0 or 1 writes every record immediately.
func (r *repository) Record(snapshot *DecisionSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, snapshot)

	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

func (r *repository) Close() error {
	close(r.shutdownChan)
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}
	<-r.flushDoneChan

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.flush(); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to flush decision history on close")
	}

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.db.Close()
		return phaseError(ErrStorageClose, "checkpoint_wal", err)
	}

	if err := r.db.Close(); err != nil {
		return phaseError(ErrStorageClose, "close_database", err)
	}

	r.logger.Info().Msg("Decision history closed")

	return nil
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Warn().Err(err).Msg("Periodic decision history flush failed")
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			return
		}
	}
}

// flush writes the buffer in one transaction and keeps it on failure, bounded
// by bufferLimit. Callers hold r.mu.
func (r *repository) flush() error {
	err := r.write()
	if err != nil {
		r.dropOldest()
	}

	return err
}

func (r *repository) dropOldest() {
	excess := len(r.buffer) - r.cfg.bufferLimit()
	if excess <= 0 {
		return
	}

	r.buffer = append(r.buffer[:0], r.buffer[excess:]...)
	r.logger.Warn().
		Int("dropped", excess).
		Int("buffered", len(r.buffer)).
		Msg("Decision history buffer full, dropped oldest records")
}

func (r *repository) write() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertDecisionSQL)
	if err != nil {
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, s := range r.buffer {
		if _, err := stmt.Exec(
			s.Timestamp.Unix(),
			int64(s.Temperature.Inlet),
			int64(s.Temperature.Exhaust),
			int64(s.Temperature.CPUMax),
			int64(s.Temperature.Max),
			int64(s.Temperature.Delta),
			s.Usage.Max,
			int64(boolToInt(s.Usage.Spike)),
			int64(s.Fan.Previous),
			int64(s.Fan.Target),
			s.Decision.Reason,
			int64(boolToInt(s.Decision.Success)),
		); err != nil {
			if err := tx.Rollback(); err != nil {
				r.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("records", len(r.buffer)).Msg("Flushed decision history")
	r.buffer = r.buffer[:0]

	return nil
}
