package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"pdit/models"
	"pdit/pkg/tasks"
	"pdit/pkg/transform"
)

// fakeStore is an in-memory Store that interprets the same column-keyed field
// maps the gorm store receives.
type fakeStore struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]*models.Document{}}
}

func (s *fakeStore) Create(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *fakeStore) ListByProject(ctx context.Context, projectID string) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Document
	for _, doc := range s.docs {
		if doc.ProjectID == projectID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (s *fakeStore) Update(ctx context.Context, id string, fields map[string]any) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyFields(doc, fields)
	cp := *doc
	return &cp, nil
}

func (s *fakeStore) Transition(ctx context.Context, id string, from, to models.DocumentStatus, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !models.ValidTransition(from, to) {
		return fmt.Errorf("invalid status transition %s -> %s", from, to)
	}
	doc, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	if doc.Status != from {
		return fmt.Errorf("document %s is %s, expected %s", id, doc.Status, from)
	}
	applyFields(doc, fields)
	doc.Status = to
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func applyFields(doc *models.Document, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "name":
			doc.Name = v.(string)
		case "original_ref":
			u := v.(string)
			doc.OriginalRef = &u
		case "modified_ref":
			u := v.(string)
			doc.ModifiedRef = &u
		case "result_ref":
			u := v.(string)
			doc.ResultRef = &u
		case "content_type":
			doc.ContentType = v.(string)
		case "pages":
			doc.Pages = json.RawMessage(v.(string))
		case "source_language":
			lang := v.(string)
			doc.SourceLanguage = &lang
		case "last_error":
			doc.LastError = v.(string)
		}
	}
}

// fakeBlobs keeps objects in a map keyed by URL and records deletes.
type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failPut bool
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (b *fakeBlobs) Put(ctx context.Context, container string, data []byte, objectPath string, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPut {
		return "", errors.New("storage unavailable")
	}
	u := b.URL(container, objectPath)
	b.objects[u] = data
	return u, nil
}

func (b *fakeBlobs) Delete(ctx context.Context, objectURL string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, objectURL)
	if _, ok := b.objects[objectURL]; !ok {
		return fmt.Errorf("no such object %s", objectURL)
	}
	delete(b.objects, objectURL)
	return nil
}

func (b *fakeBlobs) URL(container, objectPath string) string {
	return "https://files.test/" + container + "/" + objectPath
}

func (b *fakeBlobs) deletedURLs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

// fakeTransformer records inputs and delegates to fn.
type fakeTransformer struct {
	mu     sync.Mutex
	fn     func(in transform.Input) (*transform.Result, error)
	inputs []transform.Input
}

func (f *fakeTransformer) Transform(ctx context.Context, in transform.Input) (*transform.Result, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	return f.fn(in)
}

func (f *fakeTransformer) lastInput(t *testing.T) transform.Input {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		t.Fatal("transformer was never called")
	}
	return f.inputs[len(f.inputs)-1]
}

// manualScheduler collects tasks so tests decide when background work runs.
type manualScheduler struct {
	mu    sync.Mutex
	queue []tasks.Task
	fail  bool
}

func (s *manualScheduler) Schedule(t tasks.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("queue is full")
	}
	s.queue = append(s.queue, t)
	return nil
}

func (s *manualScheduler) runAll() int {
	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, t := range pending {
		t.Run(context.Background())
	}
	return len(pending)
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

type harness struct {
	svc       *Service
	store     *fakeStore
	blobs     *fakeBlobs
	sched     *manualScheduler
	compare   *fakeTransformer
	inline    *fakeTransformer
	translate *fakeTransformer
}

func newHarness() *harness {
	h := &harness{
		store:     newFakeStore(),
		blobs:     newFakeBlobs(),
		sched:     &manualScheduler{},
		compare:   &fakeTransformer{},
		inline:    &fakeTransformer{},
		translate: &fakeTransformer{},
	}
	h.svc = NewService(ServiceConfig{
		Log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:         h.store,
		Blobs:         h.blobs,
		Container:     "pdit",
		Compare:       h.compare,
		CompareInline: h.inline,
		Translate:     h.translate,
		Scheduler:     h.sched,
	})
	return h
}

func comparisonRequest() IntakeRequest {
	return IntakeRequest{
		Name:      "contract v2",
		Kind:      models.KindComparison,
		Variant:   models.VariantInline,
		ProjectID: "proj-1",
		UserID:    "user-1",
		Original:  &FileInput{Filename: "a.pdf", ContentType: "application/pdf", Data: []byte("original")},
		Modified:  &FileInput{Filename: "b.pdf", ContentType: "application/pdf", Data: []byte("modified")},
	}
}

func translationRequest() IntakeRequest {
	return IntakeRequest{
		Name:           "report",
		Kind:           models.KindTranslation,
		ProjectID:      "proj-1",
		UserID:         "user-1",
		TargetLanguage: "nl",
		Original:       &FileInput{Filename: "report.docx", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Data: []byte("source")},
	}
}

func TestCreateInlineComparison(t *testing.T) {
	h := newHarness()
	h.compare.fn = func(in transform.Input) (*transform.Result, error) {
		return &transform.Result{
			OutputURL: "https://files.test/pdit/comparison/compared/contract_v2.pdf",
			Pages:     json.RawMessage(`[{"page":1,"changes":2}]`),
		}, nil
	}

	doc, err := h.svc.Create(context.Background(), comparisonRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.Status != models.StatusPending {
		t.Fatalf("status = %s, want %s", doc.Status, models.StatusPending)
	}
	if doc.OriginalRef == nil || doc.ModifiedRef == nil {
		t.Fatal("inline record must carry both source refs on creation")
	}
	if !strings.Contains(*doc.OriginalRef, "comparison/original/contract_v2.pdf") {
		t.Errorf("original ref = %s, want deterministic comparison path", *doc.OriginalRef)
	}
	if h.sched.pending() != 1 {
		t.Fatalf("pending tasks = %d, want 1", h.sched.pending())
	}

	h.sched.runAll()

	in := h.compare.lastInput(t)
	if in.OriginalURL != *doc.OriginalRef || in.ModifiedURL != *doc.ModifiedRef {
		t.Errorf("transformer got (%s, %s), want the staged refs", in.OriginalURL, in.ModifiedURL)
	}

	got, err := h.svc.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("status = %s, want %s", got.Status, models.StatusCompleted)
	}
	if got.ResultRef == nil || *got.ResultRef == "" {
		t.Error("result ref not recorded")
	}
	if string(got.Pages) != `[{"page":1,"changes":2}]` {
		t.Errorf("pages = %s, want the service's diff data verbatim", got.Pages)
	}
}

func TestCreateTranslation(t *testing.T) {
	h := newHarness()
	h.translate.fn = func(in transform.Input) (*transform.Result, error) {
		// The service echoes the destination it was handed.
		return &transform.Result{OutputURL: in.OutputURL, SourceLanguage: "en"}, nil
	}

	doc, err := h.svc.Create(context.Background(), translationRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	h.sched.runAll()

	in := h.translate.lastInput(t)
	wantOut := h.blobs.URL("pdit", "translation/translated/report.docx")
	if in.OutputURL != wantOut {
		t.Errorf("output url = %s, want %s", in.OutputURL, wantOut)
	}
	if in.TargetLanguage != "nl" {
		t.Errorf("target language = %s, want nl", in.TargetLanguage)
	}

	got, _ := h.svc.Get(context.Background(), doc.ID)
	if got.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, models.StatusCompleted)
	}
	if got.ResultRef == nil || *got.ResultRef != wantOut {
		t.Errorf("result ref not set to the precomputed destination")
	}
	if got.SourceLanguage == nil || *got.SourceLanguage != "en" {
		t.Error("detected source language not recorded")
	}
}

func TestCreateDeferredComparison(t *testing.T) {
	h := newHarness()
	h.inline.fn = func(in transform.Input) (*transform.Result, error) {
		return &transform.Result{Artifacts: []transform.Artifact{
			{ContentType: "application/pdf", Content: []byte("echo-original")},
			{ContentType: "application/pdf", Content: []byte("echo-modified")},
			{ContentType: "application/pdf", Content: []byte("compared")},
		}}, nil
	}

	req := comparisonRequest()
	req.Variant = models.VariantBackground
	doc, err := h.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.OriginalRef != nil || doc.ModifiedRef != nil || doc.ResultRef != nil {
		t.Fatal("deferred record must be a placeholder with null refs")
	}
	if doc.Status != models.StatusPending {
		t.Fatalf("status = %s, want %s", doc.Status, models.StatusPending)
	}

	h.sched.runAll()

	in := h.inline.lastInput(t)
	if in.Original == nil || string(in.Original.Content) != "original" {
		t.Error("raw original bytes were not shipped to the transformer")
	}

	got, _ := h.svc.Get(context.Background(), doc.ID)
	if got.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, models.StatusCompleted)
	}
	for name, ref := range map[string]*string{"original": got.OriginalRef, "modified": got.ModifiedRef, "result": got.ResultRef} {
		if ref == nil || *ref == "" {
			t.Errorf("%s ref missing after reconciliation", name)
		}
	}
	if got.ContentType != "application/pdf" {
		t.Errorf("content type = %s, want application/pdf", got.ContentType)
	}
	if len(h.blobs.objects) != 3 {
		t.Errorf("staged objects = %d, want 3 artifacts", len(h.blobs.objects))
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*IntakeRequest)
	}{
		{"empty name", func(r *IntakeRequest) { r.Name = "  " }},
		{"missing project", func(r *IntakeRequest) { r.ProjectID = "" }},
		{"missing original", func(r *IntakeRequest) { r.Original = nil }},
		{"comparison without modified", func(r *IntakeRequest) { r.Modified = nil }},
		{"unknown kind", func(r *IntakeRequest) { r.Kind = "summary" }},
		{"unknown variant", func(r *IntakeRequest) { r.Variant = "async" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			req := comparisonRequest()
			tc.mutate(&req)
			_, err := h.svc.Create(context.Background(), req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if h.store.count() != 0 {
				t.Error("no record may exist after a validation failure")
			}
			if h.sched.pending() != 0 {
				t.Error("no task may be scheduled after a validation failure")
			}
		})
	}
}

func TestCreateBackgroundTranslationRejected(t *testing.T) {
	h := newHarness()
	req := translationRequest()
	req.Variant = models.VariantBackground
	if _, err := h.svc.Create(context.Background(), req); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreateStagingFailureIsSynchronous(t *testing.T) {
	h := newHarness()
	h.blobs.failPut = true
	_, err := h.svc.Create(context.Background(), comparisonRequest())
	if err == nil {
		t.Fatal("expected staging error")
	}
	if h.store.count() != 0 {
		t.Error("no record may exist after a staging failure")
	}
	if h.sched.pending() != 0 {
		t.Error("no task may be scheduled after a staging failure")
	}
}

func TestTransformFailureRecordsLastError(t *testing.T) {
	h := newHarness()
	h.compare.fn = func(in transform.Input) (*transform.Result, error) {
		return nil, errors.New("compare service: status 500: boom")
	}

	doc, err := h.svc.Create(context.Background(), comparisonRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h.sched.runAll()

	got, _ := h.svc.Get(context.Background(), doc.ID)
	if got.Status != models.StatusProcessing {
		t.Errorf("status = %s, want stuck in %s", got.Status, models.StatusProcessing)
	}
	if got.ResultRef != nil {
		t.Error("no result may be recorded on failure")
	}
	if !strings.Contains(got.LastError, "boom") {
		t.Errorf("lastError = %q, want the task failure recorded", got.LastError)
	}
}

func TestSchedulingFailureLeavesRecordPending(t *testing.T) {
	h := newHarness()
	h.sched.fail = true

	doc, err := h.svc.Create(context.Background(), comparisonRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, _ := h.svc.Get(context.Background(), doc.ID)
	if got.Status != models.StatusPending {
		t.Errorf("status = %s, want %s", got.Status, models.StatusPending)
	}
}

func TestRename(t *testing.T) {
	h := newHarness()
	doc, err := h.svc.Create(context.Background(), comparisonRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := h.svc.Rename(context.Background(), doc.ID, "contract v3")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if got.Name != "contract v3" {
		t.Errorf("name = %s, want contract v3", got.Name)
	}
	if *got.OriginalRef != *doc.OriginalRef {
		t.Error("rename must not touch artifacts")
	}

	if _, err := h.svc.Rename(context.Background(), doc.ID, "  "); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation for blank name", err)
	}
	if _, err := h.svc.Rename(context.Background(), "nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReplaceFile(t *testing.T) {
	h := newHarness()
	doc, err := h.svc.Create(context.Background(), comparisonRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	oldRef := *doc.OriginalRef

	got, err := h.svc.ReplaceFile(context.Background(), doc.ID, "contract final", &FileInput{
		Filename:    "final.docx",
		ContentType: "application/msword",
		Data:        []byte("replacement"),
	})
	if err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}
	if *got.OriginalRef == oldRef {
		t.Error("original ref must point at the new upload")
	}
	if got.ContentType != "application/msword" {
		t.Errorf("content type = %s, want the replacement's", got.ContentType)
	}
	if got.Name != "contract final" {
		t.Errorf("name = %s, want contract final", got.Name)
	}

	deleted := h.blobs.deletedURLs()
	if len(deleted) != 1 || deleted[0] != oldRef {
		t.Errorf("deleted = %v, want exactly the previous original", deleted)
	}

	if _, err := h.svc.ReplaceFile(context.Background(), doc.ID, "", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation for nil file", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	h := newHarness()
	h.compare.fn = func(in transform.Input) (*transform.Result, error) {
		u, err := h.blobs.Put(context.Background(), "pdit", []byte("diff"), "comparison/compared/contract_v2.pdf", "application/pdf")
		if err != nil {
			return nil, err
		}
		return &transform.Result{OutputURL: u}, nil
	}

	doc, err := h.svc.Create(context.Background(), comparisonRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h.sched.runAll()

	if err := h.svc.Delete(context.Background(), doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(h.blobs.objects) != 0 {
		t.Errorf("objects left after delete: %d", len(h.blobs.objects))
	}
	if _, err := h.svc.Get(context.Background(), doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}

	deletedBefore := len(h.blobs.deletedURLs())
	if err := h.svc.Delete(context.Background(), doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if len(h.blobs.deletedURLs()) != deletedBefore {
		t.Error("second delete must not touch storage")
	}
}

func TestDeleteBeforeCompletion(t *testing.T) {
	h := newHarness()
	doc, err := h.svc.Create(context.Background(), comparisonRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := h.svc.Delete(context.Background(), doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := len(h.blobs.deletedURLs()); got != 2 {
		t.Errorf("deleted %d objects, want the 2 staged sources", got)
	}
}

func TestListByProject(t *testing.T) {
	h := newHarness()
	if _, err := h.svc.Create(context.Background(), comparisonRequest()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	other := translationRequest()
	other.ProjectID = "proj-2"
	if _, err := h.svc.Create(context.Background(), other); err != nil {
		t.Fatalf("Create: %v", err)
	}

	docs, err := h.svc.ListByProject(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("ListByProject: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}
	if docs[0].ProjectID != "proj-1" {
		t.Errorf("projectId = %s, want proj-1", docs[0].ProjectID)
	}
}
