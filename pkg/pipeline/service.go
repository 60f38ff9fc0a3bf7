package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pdit/models"
	"pdit/pkg/blob"
	"pdit/pkg/tasks"
	"pdit/pkg/transform"
)

// TaskScheduler is the slice of the task runner the pipeline needs.
type TaskScheduler interface {
	Schedule(t tasks.Task) error
}

// FileInput is one user-submitted file, fully read off the intake request.
type FileInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// IntakeRequest is one transformation submission.
type IntakeRequest struct {
	Name           string
	Kind           models.DocumentKind
	Variant        models.DocumentVariant
	ProjectID      string
	UserID         string
	TargetLanguage string
	Original       *FileInput
	Modified       *FileInput
}

func (r *IntakeRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if r.ProjectID == "" || r.UserID == "" {
		return fmt.Errorf("%w: projectId and userId are required", ErrValidation)
	}
	switch r.Kind {
	case models.KindComparison:
		if r.Modified == nil || len(r.Modified.Data) == 0 {
			return fmt.Errorf("%w: modified file is missing or unreadable", ErrValidation)
		}
	case models.KindTranslation:
		if r.TargetLanguage == "" {
			return fmt.Errorf("%w: target language is required", ErrValidation)
		}
		if r.Variant == models.VariantBackground {
			return fmt.Errorf("%w: translation supports only the inline variant", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, r.Kind)
	}
	if r.Original == nil || len(r.Original.Data) == 0 {
		return fmt.Errorf("%w: original file is missing or unreadable", ErrValidation)
	}
	switch r.Variant {
	case models.VariantInline, models.VariantBackground:
	default:
		return fmt.Errorf("%w: unknown variant %q", ErrValidation, r.Variant)
	}
	return nil
}

// ServiceConfig wires the orchestrator's collaborators. Everything is
// injected so tests can substitute fakes.
type ServiceConfig struct {
	Log           *slog.Logger
	Store         Store
	Blobs         blob.Store
	Container     string
	Compare       transform.Transformer
	CompareInline transform.Transformer
	Translate     transform.Transformer
	Scheduler     TaskScheduler
}

// Service is the pipeline orchestrator: it turns an intake request into a
// record, stages sources, dispatches the transformation per variant and
// reconciles the result back into the record. Reads never wait on background
// work; callers observe whatever is persisted.
type Service struct {
	log           *slog.Logger
	store         Store
	blobs         blob.Store
	container     string
	compare       transform.Transformer
	compareInline transform.Transformer
	translate     transform.Transformer
	sched         TaskScheduler
}

func NewService(cfg ServiceConfig) *Service {
	return &Service{
		log:           cfg.Log,
		store:         cfg.Store,
		blobs:         cfg.Blobs,
		container:     cfg.Container,
		compare:       cfg.Compare,
		compareInline: cfg.CompareInline,
		translate:     cfg.Translate,
		sched:         cfg.Scheduler,
	}
}

// Create runs the intake path for both dispatch strategies. The returned
// record is complete for its variant: inline records carry their source refs,
// background records are placeholders with null refs. Exactly one background
// task is scheduled per record, right after creation.
func (s *Service) Create(ctx context.Context, req IntakeRequest) (*models.Document, error) {
	if req.Variant == "" {
		req.Variant = models.VariantInline
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	intakesTotal.WithLabelValues(string(req.Kind), string(req.Variant)).Inc()
	if req.Variant == models.VariantBackground {
		return s.createDeferred(ctx, req)
	}
	return s.createInline(ctx, req)
}

// createInline stages the source files first; a failed upload is the caller's
// error and no record exists yet. This is the only point where a
// caller-visible failure can happen before the record does.
func (s *Service) createInline(ctx context.Context, req IntakeRequest) (*models.Document, error) {
	origPath := blob.ObjectPath(string(req.Kind), "original", req.Name, fileExt(req.Original.Filename))
	origURL, err := s.blobs.Put(ctx, s.container, req.Original.Data, origPath, req.Original.ContentType)
	if err != nil {
		return nil, fmt.Errorf("stage original: %w", err)
	}

	var modURL *string
	if req.Kind == models.KindComparison {
		modPath := blob.ObjectPath(string(req.Kind), "modified", req.Name, fileExt(req.Modified.Filename))
		u, err := s.blobs.Put(ctx, s.container, req.Modified.Data, modPath, req.Modified.ContentType)
		if err != nil {
			return nil, fmt.Errorf("stage modified: %w", err)
		}
		modURL = &u
	}

	doc := &models.Document{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Kind:           req.Kind,
		Variant:        req.Variant,
		ProjectID:      req.ProjectID,
		UserID:         req.UserID,
		ContentType:    req.Original.ContentType,
		Status:         models.StatusPending,
		OriginalRef:    &origURL,
		ModifiedRef:    modURL,
		TargetLanguage: req.TargetLanguage,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, err
	}

	id := doc.ID
	switch req.Kind {
	case models.KindComparison:
		mod := *modURL
		s.schedule(id, "compare", func(ctx context.Context) {
			s.reconcileCompare(ctx, id, origURL, mod)
		})
	case models.KindTranslation:
		name, ext, lang := req.Name, fileExt(req.Original.Filename), req.TargetLanguage
		s.schedule(id, "translate", func(ctx context.Context) {
			s.reconcileTranslate(ctx, id, origURL, name, ext, lang)
		})
	}
	return doc, nil
}

// createDeferred creates a placeholder record immediately and ships the raw
// bytes to the transformer from the background task; nothing is staged before
// the caller gets a response.
func (s *Service) createDeferred(ctx context.Context, req IntakeRequest) (*models.Document, error) {
	doc := &models.Document{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Kind:        req.Kind,
		Variant:     req.Variant,
		ProjectID:   req.ProjectID,
		UserID:      req.UserID,
		ContentType: req.Original.ContentType,
		Status:      models.StatusPending,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, err
	}

	id, name := doc.ID, req.Name
	orig, mod := *req.Original, *req.Modified
	s.schedule(id, "compare-inline", func(ctx context.Context) {
		s.reconcileInlineCompare(ctx, id, name, orig, mod)
	})
	return doc, nil
}

// schedule hands a reconciliation task to the runner. A scheduling failure is
// logged and swallowed: the record stays pending and can be re-triggered via
// the replace-file update path.
func (s *Service) schedule(id, name string, fn func(context.Context)) {
	if err := s.sched.Schedule(tasks.Task{Name: name + ":" + id, Run: fn}); err != nil {
		s.log.Error("schedule background task", "document_id", id, "task", name, "err", err)
	}
}

func (s *Service) reconcileCompare(ctx context.Context, id, originalURL, modifiedURL string) {
	start := time.Now()
	if err := s.store.Transition(ctx, id, models.StatusPending, models.StatusProcessing, nil); err != nil {
		s.log.Error("start comparison", "document_id", id, "err", err)
		return
	}
	res, err := s.compare.Transform(ctx, transform.Input{
		OriginalURL: originalURL,
		ModifiedURL: modifiedURL,
	})
	if err != nil {
		s.abandon(ctx, id, models.KindComparison, err)
		return
	}
	fields := map[string]any{"result_ref": res.OutputURL}
	if len(res.Pages) > 0 {
		fields["pages"] = string(res.Pages)
	}
	if err := s.store.Transition(ctx, id, models.StatusProcessing, models.StatusCompleted, fields); err != nil {
		s.log.Error("complete comparison", "document_id", id, "err", err)
		return
	}
	tasksTotal.WithLabelValues(string(models.KindComparison), "completed").Inc()
	taskDuration.Observe(time.Since(start).Seconds())
	s.log.Info("comparison reconciled", "document_id", id, "result", res.OutputURL)
}

func (s *Service) reconcileTranslate(ctx context.Context, id, originalURL, name, ext, targetLanguage string) {
	start := time.Now()
	if err := s.store.Transition(ctx, id, models.StatusPending, models.StatusProcessing, nil); err != nil {
		s.log.Error("start translation", "document_id", id, "err", err)
		return
	}
	// The translation service writes the result itself; hand it the durable
	// destination up front.
	outPath := blob.ObjectPath(string(models.KindTranslation), "translated", name, ext)
	res, err := s.translate.Transform(ctx, transform.Input{
		OriginalURL:    originalURL,
		TargetLanguage: targetLanguage,
		OutputURL:      s.blobs.URL(s.container, outPath),
	})
	if err != nil {
		s.abandon(ctx, id, models.KindTranslation, err)
		return
	}
	fields := map[string]any{"result_ref": res.OutputURL}
	if res.SourceLanguage != "" {
		fields["source_language"] = res.SourceLanguage
	}
	if err := s.store.Transition(ctx, id, models.StatusProcessing, models.StatusCompleted, fields); err != nil {
		s.log.Error("complete translation", "document_id", id, "err", err)
		return
	}
	tasksTotal.WithLabelValues(string(models.KindTranslation), "completed").Inc()
	taskDuration.Observe(time.Since(start).Seconds())
	s.log.Info("translation reconciled", "document_id", id, "result", res.OutputURL)
}

func (s *Service) reconcileInlineCompare(ctx context.Context, id, name string, original, modified FileInput) {
	start := time.Now()
	if err := s.store.Transition(ctx, id, models.StatusPending, models.StatusProcessing, nil); err != nil {
		s.log.Error("start inline comparison", "document_id", id, "err", err)
		return
	}
	res, err := s.compareInline.Transform(ctx, transform.Input{
		Original: &transform.Payload{ContentType: original.ContentType, Content: original.Data},
		Modified: &transform.Payload{ContentType: modified.ContentType, Content: modified.Data},
	})
	if err != nil {
		s.abandon(ctx, id, models.KindComparison, err)
		return
	}

	// All artifact uploads fan out concurrently and the record is written only
	// after every one of them lands. Partial uploads on a later failure are
	// not rolled back.
	roles := [3]string{"original", "modified", "compared"}
	urls := make([]string, 3)
	g, gctx := errgroup.WithContext(ctx)
	for i, art := range res.Artifacts[:3] {
		g.Go(func() error {
			ct := art.ContentType
			if ct == "" {
				ct = "application/pdf"
			}
			p := blob.ObjectPath(string(models.KindComparison), roles[i], name, ".pdf")
			u, err := s.blobs.Put(gctx, s.container, art.Content, p, ct)
			if err != nil {
				return fmt.Errorf("upload %s artifact: %w", roles[i], err)
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.abandon(ctx, id, models.KindComparison, err)
		return
	}

	fields := map[string]any{
		"original_ref": urls[0],
		"modified_ref": urls[1],
		"result_ref":   urls[2],
		"content_type": "application/pdf",
	}
	if err := s.store.Transition(ctx, id, models.StatusProcessing, models.StatusCompleted, fields); err != nil {
		s.log.Error("complete inline comparison", "document_id", id, "err", err)
		return
	}
	tasksTotal.WithLabelValues(string(models.KindComparison), "completed").Inc()
	taskDuration.Observe(time.Since(start).Seconds())
	s.log.Info("inline comparison reconciled", "document_id", id)
}

// abandon logs a failed background task and records it on the row. The status
// deliberately stays non-terminal: nothing retries, and the only caller-visible
// signal is a record that never completes. lastError is the breadcrumb.
func (s *Service) abandon(ctx context.Context, id string, kind models.DocumentKind, cause error) {
	s.log.Error("background task abandoned", "document_id", id, "kind", kind, "err", cause)
	tasksTotal.WithLabelValues(string(kind), "abandoned").Inc()
	if _, err := s.store.Update(ctx, id, map[string]any{"last_error": cause.Error()}); err != nil {
		s.log.Error("record last error", "document_id", id, "err", err)
	}
}

func (s *Service) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) ListByProject(ctx context.Context, projectID string) ([]models.Document, error) {
	return s.store.ListByProject(ctx, projectID)
}

// Rename updates record metadata without touching artifacts.
func (s *Service) Rename(ctx context.Context, id, name string) (*models.Document, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	return s.store.Update(ctx, id, map[string]any{"name": name})
}

// ReplaceFile swaps the primary source artifact and optionally the name: the
// old blob is deleted, the new one staged, and the record updated atomically.
// An in-flight transformation is not restarted.
func (s *Service) ReplaceFile(ctx context.Context, id, name string, file *FileInput) (*models.Document, error) {
	if file == nil || len(file.Data) == 0 {
		return nil, fmt.Errorf("%w: replacement file is missing or unreadable", ErrValidation)
	}
	doc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OriginalRef != nil {
		// A failed cleanup does not block the replace; the new upload gets a
		// fresh path either way.
		if err := s.blobs.Delete(ctx, *doc.OriginalRef); err != nil {
			s.log.Warn("delete previous original", "document_id", id, "url", *doc.OriginalRef, "err", err)
		}
	}
	newName := doc.Name
	if name != "" {
		newName = name
	}
	p := blob.ObjectPath(string(doc.Kind), "original", newName, fileExt(file.Filename))
	u, err := s.blobs.Put(ctx, s.container, file.Data, p, file.ContentType)
	if err != nil {
		return nil, fmt.Errorf("stage replacement: %w", err)
	}
	fields := map[string]any{"original_ref": u, "content_type": file.ContentType}
	if name != "" {
		fields["name"] = name
	}
	return s.store.Update(ctx, id, fields)
}

// Delete removes every staged artifact, then the record. Blob cleanup is
// best-effort and never blocks the record delete; a second delete of the same
// id reports ErrNotFound without touching storage again.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	for _, ref := range []*string{doc.OriginalRef, doc.ModifiedRef, doc.ResultRef} {
		if ref == nil || *ref == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, *ref); err != nil {
			s.log.Warn("blob cleanup failed", "document_id", id, "url", *ref, "err", err)
		}
	}
	return s.store.Delete(ctx, id)
}

func fileExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
