// Package store persists job history and ranked candidates in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/five82/seamloop/internal/analysis"
	"github.com/five82/seamloop/internal/protocol"
	"github.com/five82/seamloop/internal/search"
	"github.com/five82/seamloop/internal/similarity"
)

const errStoreNil = "store is nil"

// Job statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Job is one analysis or render submission.
type Job struct {
	ID              string `gorm:"primaryKey;type:varchar(36)"`
	Kind            string `gorm:"index:idx_job_kind"`
	VideoRef        string
	Status          string
	Error           string
	DurationMs      float64
	Width           int
	Height          int
	FrameIntervalMs float64
	Pairs           int
	MimeType        string
	OutputBytes     int
	CreatedAt       time.Time
	FinishedAt      *time.Time
}

// Candidate is a ranked loop belonging to an analysis job.
type Candidate struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	JobID          string `gorm:"type:varchar(36);index:idx_candidate_job"`
	Position       int
	StartMs        float64
	EndMs          float64
	Score          float64
	SSIM           float64
	HistSimilarity float64
	FlowError      float64
}

// Store is a job history database.
type Store struct {
	DB     *gorm.DB
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens or creates the database at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Job{}, &Candidate{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Store{DB: db, db: sqlDB, logger: log.With().Str("component", "store").Logger()}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordStart inserts a running job.
func (s *Store) RecordStart(id string, kind protocol.JobKind, videoRef string) error {
	if s == nil || s.DB == nil {
		return errors.New(errStoreNil)
	}
	job := Job{ID: id, Kind: string(kind), VideoRef: videoRef, Status: StatusRunning}
	if err := s.DB.Create(&job).Error; err != nil {
		return fmt.Errorf("creating job %s: %w", id, err)
	}
	return nil
}

// RecordAnalysis marks id succeeded and stores its ranked candidates.
func (s *Store) RecordAnalysis(id string, res *analysis.Result) error {
	if s == nil || s.DB == nil {
		return errors.New(errStoreNil)
	}
	now := time.Now()
	return s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&Job{ID: id}).Updates(map[string]any{
			"status":            StatusSucceeded,
			"duration_ms":       res.DurationMs,
			"width":             res.VideoDimensions.Width,
			"height":            res.VideoDimensions.Height,
			"frame_interval_ms": res.FrameIntervalMs,
			"pairs":             res.Pairs,
			"finished_at":       &now,
		}).Error
		if err != nil {
			return fmt.Errorf("updating job %s: %w", id, err)
		}
		if err := tx.Where("job_id = ?", id).Delete(&Candidate{}).Error; err != nil {
			return err
		}
		if len(res.Candidates) == 0 {
			return nil
		}

		rows := make([]Candidate, len(res.Candidates))
		for i, c := range res.Candidates {
			rows[i] = Candidate{
				JobID:          id,
				Position:       i + 1,
				StartMs:        c.StartMs,
				EndMs:          c.EndMs,
				Score:          c.Score,
				SSIM:           c.Subscores.SSIM,
				HistSimilarity: c.Subscores.HistSimilarity,
				FlowError:      c.Subscores.FlowError,
			}
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("inserting candidates: %w", err)
		}
		return nil
	})
}

// RecordRender marks id succeeded with the encoded output size.
func (s *Store) RecordRender(id, mimeType string, size int) error {
	return s.finish(id, map[string]any{
		"status":       StatusSucceeded,
		"mime_type":    mimeType,
		"output_bytes": size,
	})
}

// RecordFailure marks id failed with message.
func (s *Store) RecordFailure(id, message string) error {
	return s.finish(id, map[string]any{
		"status": StatusFailed,
		"error":  message,
	})
}

func (s *Store) finish(id string, fields map[string]any) error {
	if s == nil || s.DB == nil {
		return errors.New(errStoreNil)
	}
	now := time.Now()
	fields["finished_at"] = &now
	if err := s.DB.Model(&Job{ID: id}).Updates(fields).Error; err != nil {
		return fmt.Errorf("updating job %s: %w", id, err)
	}
	return nil
}

// GetJob returns the job with id.
func (s *Store) GetJob(id string) (*Job, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}
	var job Job
	if err := s.DB.Where("id = ?", id).First(&job).Error; err != nil {
		return nil, fmt.Errorf("querying job %s: %w", id, err)
	}
	return &job, nil
}

// ListJobs returns up to limit jobs, newest first. kind filters when set.
func (s *Store) ListJobs(kind protocol.JobKind, limit int) ([]Job, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}
	q := s.DB.Order("created_at DESC")
	if kind != "" {
		q = q.Where("kind = ?", string(kind))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var jobs []Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return jobs, nil
}

// Candidates returns the ranked candidates of an analysis job, best first.
func (s *Store) Candidates(jobID string) ([]search.Candidate, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}
	var rows []Candidate
	if err := s.DB.Where("job_id = ?", jobID).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	out := make([]search.Candidate, len(rows))
	for i, r := range rows {
		out[i] = search.Candidate{
			StartMs: r.StartMs,
			EndMs:   r.EndMs,
			Score:   r.Score,
			Subscores: similarity.Subscores{
				SSIM:           r.SSIM,
				HistSimilarity: r.HistSimilarity,
				FlowError:      r.FlowError,
			},
		}
	}
	return out, nil
}

// JobStarted records a new job. Failures are logged; history never fails a job.
func (s *Store) JobStarted(id string, kind protocol.JobKind, videoRef string) {
	if err := s.RecordStart(id, kind, videoRef); err != nil {
		s.logger.Warn().Err(err).Str("job", id).Msg("failed to record job start")
	}
}

// JobFinished records a terminal notification.
func (s *Store) JobFinished(n protocol.Notification) {
	var err error
	protocol.Dispatch(n, protocol.VisitorFuncs{
		AnalysisResult: func(m protocol.AnalysisResult) {
			err = s.RecordAnalysis(m.JobID(), &m.Result)
		},
		RenderResult: func(m protocol.RenderResult) {
			err = s.RecordRender(m.JobID(), m.MimeType, len(m.Buffer))
		},
		Error: func(m protocol.Error) {
			err = s.RecordFailure(m.JobID(), m.Message)
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("job", n.JobID()).Msg("failed to record job result")
	}
}
