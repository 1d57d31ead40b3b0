package image

import (
	"bytes"
	"context"
	"errors"
	stdimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"image-variants/internal/config"
	"image-variants/internal/domain"
	repoImage "image-variants/internal/repository/image"
	"image-variants/internal/repository/image/fs"
	"image-variants/internal/usecase/negotiation"
	"image-variants/internal/usecase/processor"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

type memoryRepo struct {
	mu      sync.Mutex
	images  map[string]domain.ImageMetadata
	saveErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{images: make(map[string]domain.ImageMetadata)}
}

func (r *memoryRepo) Save(_ context.Context, meta *domain.ImageMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.images[meta.ID] = *meta
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*domain.ImageMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.images[id]
	if !ok {
		return nil, repoImage.ErrImageNotFound
	}
	return &meta, nil
}

func (r *memoryRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.ImageMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ImageMetadata
	for _, m := range r.images {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.images[id]
	return ok, nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.images[id]; !ok {
		return repoImage.ErrImageNotFound
	}
	delete(r.images, id)
	return nil
}

func (r *memoryRepo) DeleteOwned(_ context.Context, id, ownerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.images[id]
	if !ok || meta.OwnerID != ownerID {
		return false, nil
	}
	delete(r.images, id)
	return true, nil
}

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.images)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ImageEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.ImageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// failingProcessor fails to encode one format.
type failingProcessor struct {
	imageProcessor
	format domain.ImageFormat
}

func (p failingProcessor) Encode(ctx context.Context, f config.FormatConfig, img stdimage.Image) (*domain.Variant, error) {
	if f.Key == p.format {
		return nil, errors.New("encoder exploded")
	}
	return p.imageProcessor.Encode(ctx, f, img)
}

func testFormats() []config.FormatConfig {
	return []config.FormatConfig{
		{Key: domain.FormatWebP, Enabled: true, MediaType: "image/webp", Extension: "webp", Weight: 1, Quality: 80, Compression: "DEFAULT"},
		{Key: domain.FormatPNG, Enabled: true, MediaType: "image/png", Extension: "png", Weight: 0.9, Quality: 90},
		{Key: domain.FormatJPEG, Enabled: true, MediaType: "image/jpeg", Extension: "jpeg", Weight: 1, Quality: 85},
		{Key: domain.FormatGIF, Enabled: true, MediaType: "image/gif", Extension: "gif", Weight: 0.5, Quality: 85},
		{Key: domain.FormatBMP, Enabled: true, MediaType: "image/bmp", Extension: "bmp", Weight: 0.1, Quality: 100},
	}
}

type fixture struct {
	uc        *ImageUsecase
	repo      *memoryRepo
	store     *fs.Store
	root      string
	publisher *recordingPublisher
}

func newFixture(t *testing.T, formats []config.FormatConfig, wrap func(imageProcessor) imageProcessor) *fixture {
	t.Helper()

	root := t.TempDir()
	store, err := fs.NewStore(root, &zlog.Logger)
	if err != nil {
		t.Fatalf("fs.NewStore: %v", err)
	}

	registry, err := processor.NewRegistry(formats)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	var proc imageProcessor = processor.NewImageProcessor(registry, &zlog.Logger)
	if wrap != nil {
		proc = wrap(proc)
	}

	var enabled []config.FormatConfig
	for _, f := range formats {
		if f.Enabled {
			enabled = append(enabled, f)
		}
	}

	repo := newMemoryRepo()
	publisher := &recordingPublisher{}
	uc := NewImageUsecase(repo, store, proc, negotiation.NewNegotiator(formats), publisher, enabled, 2, &zlog.Logger)

	return &fixture{uc: uc, repo: repo, store: store, root: root, publisher: publisher}
}

func pngUpload(t *testing.T) []byte {
	t.Helper()
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, 10, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 10; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(25 * x), G: uint8(40 * y), B: 90, A: 200})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func stagingEntries(t *testing.T, root string) int {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(root, domain.StagingDirName))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return len(entries)
}

func TestUploadThenRetrieveEachFormat(t *testing.T) {
	f := newFixture(t, testFormats(), nil)
	ctx := context.Background()

	meta, err := f.uc.UploadImage(ctx, pngUpload(t), "alice")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if _, err := uuid.Parse(meta.ID); err != nil {
		t.Errorf("id %q is not a UUID", meta.ID)
	}

	for _, format := range testFormats() {
		if _, err := os.Stat(filepath.Join(f.root, meta.ID, "image."+format.Extension)); err != nil {
			t.Errorf("missing %s variant on disk: %v", format.Key, err)
		}

		v, err := f.uc.GetBestSuitedImage(ctx, meta.ID, negotiation.ParseAccept(format.MediaType))
		if err != nil {
			t.Fatalf("GetBestSuitedImage(%s): %v", format.MediaType, err)
		}
		if v.Format != format.Key || v.MediaType != format.MediaType {
			t.Errorf("got %s/%s, want %s", v.Format, v.MediaType, format.Key)
		}
		if !mimetype.Detect(v.Data).Is(format.MediaType) {
			t.Errorf("%s variant detected as %s", format.Key, mimetype.Detect(v.Data))
		}
	}

	exists, err := f.uc.DoesImageExist(ctx, meta.ID)
	if err != nil || !exists {
		t.Errorf("DoesImageExist = %v, %v", exists, err)
	}

	if len(f.publisher.events) != 1 || f.publisher.events[0].Type != domain.EventImageUploaded {
		t.Errorf("events = %+v", f.publisher.events)
	}
}

func TestGetBestSuitedImage_PrefersHighestScore(t *testing.T) {
	f := newFixture(t, testFormats(), nil)
	ctx := context.Background()

	meta, err := f.uc.UploadImage(ctx, pngUpload(t), "alice")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}

	v, err := f.uc.GetBestSuitedImage(ctx, meta.ID, negotiation.ParseAccept("image/jpeg;q=0.9,image/png;q=0.8,*/*;q=0.7"))
	if err != nil {
		t.Fatalf("GetBestSuitedImage: %v", err)
	}
	if v.Format != domain.FormatJPEG {
		t.Errorf("winner = %s, want jpeg", v.Format)
	}
}

func TestGetBestSuitedImage_DisabledAfterUpload(t *testing.T) {
	formats := testFormats()
	f := newFixture(t, formats, nil)
	ctx := context.Background()

	meta, err := f.uc.UploadImage(ctx, pngUpload(t), "alice")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}

	formats[0].Enabled = false
	f.uc.negotiator = negotiation.NewNegotiator(formats)

	_, err = f.uc.GetBestSuitedImage(ctx, meta.ID, negotiation.ParseAccept("image/webp"))
	if !errors.Is(err, ErrNotAcceptable) {
		t.Fatalf("expected ErrNotAcceptable, got %v", err)
	}
}

func TestGetBestSuitedImage_Errors(t *testing.T) {
	f := newFixture(t, testFormats(), nil)
	ctx := context.Background()

	if _, err := f.uc.GetBestSuitedImage(ctx, uuid.NewString(), nil); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("unknown id: expected ErrImageNotFound, got %v", err)
	}

	meta, err := f.uc.UploadImage(ctx, pngUpload(t), "alice")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}

	if _, err := f.uc.GetBestSuitedImage(ctx, meta.ID, negotiation.ParseAccept("application/pdf")); !errors.Is(err, ErrNotAcceptable) {
		t.Errorf("expected ErrNotAcceptable, got %v", err)
	}

	if err := os.Remove(filepath.Join(f.root, meta.ID, "image.webp")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	_, err = f.uc.GetBestSuitedImage(ctx, meta.ID, negotiation.ParseAccept("image/webp"))
	if !errors.Is(err, ErrStorageError) || errors.Is(err, ErrImageNotFound) {
		t.Errorf("missing variant: expected ErrStorageError, got %v", err)
	}
}

func TestUploadImage_BadUpload(t *testing.T) {
	f := newFixture(t, testFormats(), nil)

	pdf := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
	meta, err := f.uc.UploadImage(context.Background(), pdf, "alice")
	if !errors.Is(err, ErrBadUpload) {
		t.Fatalf("expected ErrBadUpload, got %v", err)
	}
	if meta != nil {
		t.Errorf("expected no metadata, got %+v", meta)
	}
	if f.repo.count() != 0 {
		t.Error("metadata was saved for a bad upload")
	}

	images, err := f.store.ListImages(context.Background())
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("files created for a bad upload: %+v", images)
	}
	if stagingEntries(t, f.root) != 0 {
		t.Error("staging directory not empty")
	}
}

func TestUploadImage_EncodeFailureLeavesNothing(t *testing.T) {
	f := newFixture(t, testFormats(), func(p imageProcessor) imageProcessor {
		return failingProcessor{imageProcessor: p, format: domain.FormatGIF}
	})
	ctx := context.Background()

	_, err := f.uc.UploadImage(ctx, pngUpload(t), "alice")
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}

	if f.repo.count() != 0 {
		t.Error("metadata saved after a failed upload")
	}
	images, _ := f.store.ListImages(ctx)
	if len(images) != 0 {
		t.Errorf("committed images after failed upload: %+v", images)
	}
	if stagingEntries(t, f.root) != 0 {
		t.Error("staged files left behind")
	}
}

func TestUploadImage_MetadataFailureRemovesFiles(t *testing.T) {
	f := newFixture(t, testFormats(), nil)
	f.repo.saveErr = errors.New("db down")
	ctx := context.Background()

	if _, err := f.uc.UploadImage(ctx, pngUpload(t), "alice"); !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}

	images, _ := f.store.ListImages(ctx)
	if len(images) != 0 {
		t.Errorf("files left without metadata: %+v", images)
	}
	if len(f.publisher.events) != 0 {
		t.Errorf("event published for failed upload: %+v", f.publisher.events)
	}
}

func TestUploadImage_NoFormatsEnabled(t *testing.T) {
	formats := testFormats()
	for i := range formats {
		formats[i].Enabled = false
	}
	f := newFixture(t, formats, nil)

	if _, err := f.uc.UploadImage(context.Background(), pngUpload(t), "alice"); !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
}

func TestDeleteImage_Authorization(t *testing.T) {
	f := newFixture(t, testFormats(), nil)
	ctx := context.Background()

	meta, err := f.uc.UploadImage(ctx, pngUpload(t), "alice")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}

	if err := f.uc.DeleteImage(ctx, meta.ID, "bob", false); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if ok, _ := f.uc.DoesImageExist(ctx, meta.ID); !ok {
		t.Fatal("metadata removed by forbidden delete")
	}
	if ok, _ := f.store.Exists(ctx, meta.ID); !ok {
		t.Fatal("files removed by forbidden delete")
	}

	if err := f.uc.DeleteImage(ctx, meta.ID, "bob", true); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if ok, _ := f.uc.DoesImageExist(ctx, meta.ID); ok {
		t.Error("metadata still present after delete")
	}
	if ok, _ := f.store.Exists(ctx, meta.ID); ok {
		t.Error("files still present after delete")
	}

	last := f.publisher.events[len(f.publisher.events)-1]
	if last.Type != domain.EventImageDeleted || last.DeletedBy != "bob" || last.OwnerID != "alice" {
		t.Errorf("unexpected delete event %+v", last)
	}
}

func TestDeleteImage_Owner(t *testing.T) {
	f := newFixture(t, testFormats(), nil)
	ctx := context.Background()

	meta, err := f.uc.UploadImage(ctx, pngUpload(t), "alice")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if err := f.uc.DeleteImage(ctx, meta.ID, "alice", false); err != nil {
		t.Fatalf("owner delete: %v", err)
	}

	if _, err := f.uc.GetBestSuitedImage(ctx, meta.ID, nil); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("retrieve after delete: expected ErrImageNotFound, got %v", err)
	}
	if err := f.uc.DeleteImage(ctx, meta.ID, "alice", false); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("second delete: expected ErrImageNotFound, got %v", err)
	}
}

func TestDeleteImage_UnknownID(t *testing.T) {
	f := newFixture(t, testFormats(), nil)

	if err := f.uc.DeleteImage(context.Background(), uuid.NewString(), "alice", true); !errors.Is(err, ErrImageNotFound) {
		t.Fatalf("expected ErrImageNotFound, got %v", err)
	}
}

func TestListImages(t *testing.T) {
	f := newFixture(t, testFormats()[:2], nil)
	ctx := context.Background()

	for _, owner := range []string{"alice", "alice", "bob"} {
		if _, err := f.uc.UploadImage(ctx, pngUpload(t), owner); err != nil {
			t.Fatalf("UploadImage: %v", err)
		}
	}

	images, err := f.uc.ListImages(ctx, "alice")
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(images) != 2 {
		t.Errorf("alice has %d images, want 2", len(images))
	}
}
