// Package services holds the server's use cases. TaskService accepts image
// processing requests, runs them in the background and reports their
// status.
package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dmitrijs2005/photomagic/internal/common"
	"github.com/dmitrijs2005/photomagic/internal/logging"
	sc "github.com/dmitrijs2005/photomagic/internal/server/config"
	"github.com/dmitrijs2005/photomagic/internal/server/dispatch"
	"github.com/dmitrijs2005/photomagic/internal/server/models"
	"github.com/dmitrijs2005/photomagic/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/photomagic/internal/server/vision"
	"github.com/google/uuid"
)

const processedContentType = "image/png"

// ObjectStore is the part of storage.S3Store the service needs.
type ObjectStore interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// VisionClient is the part of vision.Client the service needs.
type VisionClient interface {
	RemoveBackground(ctx context.Context, imageURL string, entitled bool) (*vision.Result, error)
}

type TaskService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	objects     ObjectStore
	vision      VisionClient
	dispatcher  dispatch.Dispatcher
	logger      logging.Logger
	config      *sc.Config

	now   func() time.Time
	newID func() string
}

func NewTaskService(db *sql.DB, repomanager repomanager.RepositoryManager, objects ObjectStore,
	vision VisionClient, dispatcher dispatch.Dispatcher, logger logging.Logger, config *sc.Config) *TaskService {
	return &TaskService{
		db:          db,
		repomanager: repomanager,
		objects:     objects,
		vision:      vision,
		dispatcher:  dispatcher,
		logger:      logger,
		config:      config,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Submit creates a processing task for fileID and hands it to the
// dispatcher. Nothing is created when validation fails. A task that could
// not be dispatched is returned already failed.
func (s *TaskService) Submit(ctx context.Context, ownerID, fileID string, kind models.TaskKind) (*models.Task, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: fileId is required", common.ErrInvalidInput)
	}
	if !kind.Known() {
		return nil, fmt.Errorf("%w: unknown task kind %q", common.ErrInvalidInput, kind)
	}
	if kind != models.KindRemoveBackground {
		return nil, fmt.Errorf("%w: %s", common.ErrNotImplemented, kind)
	}

	task := models.NewTask(s.newID(), ownerID, fileID, kind, s.now())
	if err := s.repomanager.Tasks(s.db).Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	job := dispatch.Job{
		TaskID:  task.ID,
		OwnerID: ownerID,
		FileID:  fileID,
		Kind:    kind,
		TraceID: logging.TraceID(ctx),
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		msg := fmt.Sprintf("dispatch failed: %v", err)
		s.logger.Error(ctx, "task dispatch failed", "task_id", task.ID, "error", err)
		if err := s.fail(ctx, task.ID, msg); err != nil {
			return nil, err
		}
		_ = task.Advance(models.Failed(msg), s.now())
		return task, nil
	}

	s.logger.Info(ctx, "task submitted", "task_id", task.ID, "file_id", fileID, "kind", kind)
	return task, nil
}

// Run performs job and records its outcome. Processing failures end up in
// the task record; the returned error only reports that the outcome itself
// could not be written.
func (s *TaskService) Run(ctx context.Context, job dispatch.Job) (err error) {
	if job.TraceID != "" {
		ctx = logging.WithTraceID(ctx, job.TraceID)
	}
	log := s.logger.With("task_id", job.TaskID, "file_id", job.FileID)

	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "task panicked", "panic", r)
			err = s.fail(ctx, job.TaskID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	result, perr := s.process(ctx, job)
	if perr != nil {
		log.Error(ctx, "task failed", "error", perr)
		return s.fail(ctx, job.TaskID, perr.Error())
	}

	err = s.repomanager.Tasks(s.db).Complete(ctx, job.TaskID, *result)
	switch {
	case errors.Is(err, common.ErrTaskTerminal):
		log.Warn(ctx, "task already terminal, result dropped")
		return nil
	case err != nil:
		log.Error(ctx, "task result not recorded", "error", err)
		if ferr := s.fail(ctx, job.TaskID, "result could not be saved"); ferr != nil {
			return ferr
		}
		return fmt.Errorf("complete task %s: %w", job.TaskID, err)
	}

	log.Info(ctx, "task completed", "processed_key", result.ProcessedKey)
	return nil
}

func (s *TaskService) process(ctx context.Context, job dispatch.Job) (*models.TaskResult, error) {
	if job.Kind != models.KindRemoveBackground {
		return nil, fmt.Errorf("%s is not implemented", job.Kind)
	}

	filesRepo := s.repomanager.Files(s.db)

	file, err := filesRepo.Get(ctx, job.FileID)
	if errors.Is(err, common.ErrorNotFound) || (err == nil && file.OwnerID != job.OwnerID) {
		return nil, errors.New("file not found")
	}
	if err != nil {
		return nil, fmt.Errorf("file lookup failed: %w", err)
	}

	entitled, err := s.repomanager.Users(s.db).GetEntitlement(ctx, job.OwnerID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("subscription lookup failed: %w", err)
	}

	url, err := s.objects.PresignGet(ctx, file.OriginalKey, s.config.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("original image unavailable: %w", err)
	}

	res, err := s.vision.RemoveBackground(ctx, url, entitled)
	if err != nil {
		return nil, fmt.Errorf("background removal failed: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(res.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("background removal returned invalid data: %w", err)
	}

	png, size, err := normalizePNG(raw)
	if err != nil {
		return nil, fmt.Errorf("background removal returned invalid image: %w", err)
	}

	key := models.ProcessedKey(job.FileID, job.Kind)
	if err := s.objects.Put(ctx, key, png, processedContentType); err != nil {
		return nil, fmt.Errorf("saving processed image failed: %w", err)
	}

	if err := filesRepo.AppendProcessedKey(ctx, job.FileID, key); err != nil {
		return nil, fmt.Errorf("file update failed: %w", err)
	}

	return &models.TaskResult{
		ProcessedKey:  key,
		OriginalSize:  file.Size(),
		ProcessedSize: &size,
		ProcessedAt:   s.now().UTC(),
	}, nil
}

// normalizePNG checks that data is a decodable image and returns it as PNG
// together with its dimensions. PNG input is passed through unchanged.
func normalizePNG(data []byte) ([]byte, models.Size, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, models.Size{}, err
	}
	size := models.Size{Width: cfg.Width, Height: cfg.Height}
	if format == "png" {
		return data, size, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, models.Size{}, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, models.Size{}, err
	}
	return buf.Bytes(), size, nil
}

func (s *TaskService) fail(ctx context.Context, taskID, msg string) error {
	err := s.repomanager.Tasks(s.db).Fail(ctx, taskID, msg)
	if errors.Is(err, common.ErrTaskTerminal) {
		s.logger.Warn(ctx, "task already terminal, failure dropped", "task_id", taskID)
		return nil
	}
	if err != nil {
		s.logger.Error(ctx, "task failure not recorded", "task_id", taskID, "error", err)
		return fmt.Errorf("fail task %s: %w", taskID, err)
	}
	return nil
}

// TaskView is the status document returned to the task owner.
type TaskView struct {
	TaskID    string             `json:"taskId"`
	Status    models.TaskState   `json:"status"`
	TaskType  models.TaskKind    `json:"taskType"`
	FileID    string             `json:"fileId"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
	Result    *models.TaskResult `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func newTaskView(t *models.Task) *TaskView {
	v := &TaskView{
		TaskID:    t.ID,
		Status:    t.State(),
		TaskType:  t.Kind,
		FileID:    t.FileID,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if r, ok := t.Outcome.Result(); ok {
		v.Result = &r
	}
	if msg, ok := t.Outcome.FailureMessage(); ok {
		v.Error = msg
	}
	return v
}

// Status returns the task view for its owner. Other callers get
// common.ErrorForbidden whatever the task state.
func (s *TaskService) Status(ctx context.Context, callerID, taskID string) (*TaskView, error) {
	t, err := s.repomanager.Tasks(s.db).Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != callerID {
		return nil, common.ErrorForbidden
	}
	return newTaskView(t), nil
}
