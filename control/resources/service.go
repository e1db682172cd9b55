// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package resources

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/events"
	"ouroboros.dev/ouroboros/control/objectstore"
	"ouroboros.dev/ouroboros/control/problems"
)

var (
	// Error is the resources service error class.
	Error = errs.Class("resources service")

	mon = monkit.Package()
)

// previewBytesPerLine is the read budget per requested preview line.
const previewBytesPerLine = 200

// Config holds the upload pipeline settings.
type Config struct {
	UploadTimeout time.Duration `help:"how long an initiated upload may wait for confirmation before the verifier runs" default:"900s"`
	PresignExpiry time.Duration `help:"lifetime of presigned upload urls" default:"1h"`
	MaxUploadSize int64         `help:"maximum bytes accepted per upload" default:"1073741824"`
}

// Service implements resource operations and owns the per-upload verifiers.
type Service struct {
	log    *zap.Logger
	db     DB
	store  objectstore.Client
	auth   *accounts.Service
	bus    *events.Bus
	config Config

	mu        sync.Mutex
	runCtx    context.Context
	verifiers sync.WaitGroup
}

// NewService creates a resources service.
func NewService(log *zap.Logger, db DB, store objectstore.Client, auth *accounts.Service, bus *events.Bus, config Config) *Service {
	return &Service{
		log:    log,
		db:     db,
		store:  store,
		auth:   auth,
		bus:    bus,
		config: config,
	}
}

// Run parents the per-upload verifiers to ctx and blocks until shutdown.
func (service *Service) Run(ctx context.Context) error {
	service.mu.Lock()
	service.runCtx = ctx
	service.mu.Unlock()

	<-ctx.Done()
	service.verifiers.Wait()
	return nil
}

// Close waits for spawned verifiers; cancellation comes from the Run context.
func (service *Service) Close() error {
	service.verifiers.Wait()
	return nil
}

func (service *Service) verifierContext() context.Context {
	service.mu.Lock()
	defer service.mu.Unlock()
	if service.runCtx != nil {
		return service.runCtx
	}
	return context.Background()
}

// access reports whether the user may touch the resource. Global resources
// (nil project) are accessible to any authenticated user.
func (service *Service) access(user *accounts.User, resource *Resource, superuserBypass bool) error {
	if resource.ProjectID == nil {
		return nil
	}
	if superuserBypass && user.IsSuperuser {
		return nil
	}
	return service.auth.ValidateProjectAccess(user, *resource.ProjectID)
}

// InitiateUploadParams describe the file about to be uploaded.
type InitiateUploadParams struct {
	FileName     string
	Type         Type
	ProjectID    *int64
	FileLabel    *string
	Tags         []string
	LineFormat   string
	LineEncoding string
	UsedForModes []string
}

// Upload is the first phase of the two-phase upload protocol.
type Upload struct {
	ResourceID       uuid.UUID
	UploadURL        string
	ExpiresInSeconds int64
}

// InitiateUpload creates a pending resource row, presigns a PUT URL keyed by
// the resource ID and schedules the upload verifier.
func (service *Service) InitiateUpload(ctx context.Context, user *accounts.User, params InitiateUploadParams) (_ Upload, err error) {
	defer mon.Task()(&ctx)(&err)

	if params.ProjectID != nil {
		if err := service.auth.ValidateProjectAccess(user, *params.ProjectID); err != nil {
			return Upload{}, err
		}
	}
	if params.Type.Ephemeral() {
		return Upload{}, problems.InvalidResourceFormat(
			"Ephemeral resources hold their content inline and cannot be uploaded")
	}

	encoding := params.LineEncoding
	if encoding == "" {
		encoding = "utf-8"
	}

	resource := &Resource{
		ID:           uuid.New(),
		ProjectID:    params.ProjectID,
		FileName:     params.FileName,
		FileLabel:    params.FileLabel,
		Type:         params.Type,
		LineFormat:   params.LineFormat,
		LineEncoding: encoding,
		UsedForModes: params.UsedForModes,
		Source:       "upload",
		GUID:         uuid.New(),
		IsUploaded:   false,
		Tags:         params.Tags,
	}
	if err := service.db.Insert(ctx, resource); err != nil {
		return Upload{}, Error.Wrap(err)
	}

	uploadURL, err := service.store.PresignPut(ctx, resource.ID.String(), service.config.PresignExpiry)
	if err != nil {
		return Upload{}, Error.Wrap(err)
	}

	service.scheduleVerification(resource.ID)

	return Upload{
		ResourceID:       resource.ID,
		UploadURL:        uploadURL,
		ExpiresInSeconds: int64(service.config.PresignExpiry.Seconds()),
	}, nil
}

// ConfirmUpload is the second phase: it checks the uploaded object and marks
// the resource available.
func (service *Service) ConfirmUpload(ctx context.Context, user *accounts.User, id uuid.UUID) (_ *Resource, err error) {
	defer mon.Task()(&ctx)(&err)

	resource, err := service.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := service.access(user, resource, false); err != nil {
		return nil, err
	}
	if resource.IsUploaded {
		return resource, nil
	}

	info, err := service.store.StatObject(ctx, id.String())
	if err != nil {
		if objectstore.ErrNotFound.Has(err) {
			return nil, problems.InvalidResourceState(
				"No uploaded object found for this resource. Upload the file first.")
		}
		return nil, Error.Wrap(err)
	}
	if service.config.MaxUploadSize > 0 && info.Size > service.config.MaxUploadSize {
		return nil, problems.InvalidResourceFormat(fmt.Sprintf(
			"Uploaded file is %d bytes, above the %d byte limit", info.Size, service.config.MaxUploadSize))
	}

	lineCount, err := service.countLines(ctx, id.String())
	if err != nil {
		service.log.Warn("line count failed", zap.Stringer("resource", id), zap.Error(err))
	}

	resource.ByteSize = info.Size
	resource.Checksum = info.ETag
	resource.LineCount = lineCount
	resource.IsUploaded = true

	if err := service.db.Update(ctx, resource); err != nil {
		return nil, Error.Wrap(err)
	}

	service.bus.Publish(ctx, events.ResourceUploaded, map[string]any{
		"resource_id": id.String(),
		"file_name":   resource.FileName,
		"byte_size":   resource.ByteSize,
	})
	return resource, nil
}

func (service *Service) countLines(ctx context.Context, key string) (_ int64, err error) {
	reader, err := service.store.GetObject(ctx, key)
	if err != nil {
		return 0, err
	}
	defer func() { err = errs.Combine(err, reader.Close()) }()

	var count int64
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}

// List returns resources visible to the user. Ephemeral types are excluded;
// superusers see everything.
func (service *Service) List(ctx context.Context, user *accounts.User, opts ListOptions) (_ []ListItem, total int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if user.IsSuperuser {
		opts.All = true
	} else {
		opts.ProjectIDs = service.auth.AccessibleProjects(user)
	}
	if opts.ProjectID != nil && !user.IsSuperuser {
		if err := service.auth.ValidateProjectAccess(user, *opts.ProjectID); err != nil {
			return nil, 0, err
		}
	}

	items, total, err := service.db.List(ctx, opts)
	return items, total, Error.Wrap(err)
}

// Detail is a resource with the attacks referencing it.
type Detail struct {
	Resource
	UsageCount int64
	Attacks    []AttackRef
}

// Get returns a resource with its referencing attacks.
func (service *Service) Get(ctx context.Context, user *accounts.User, id uuid.UUID) (_ Detail, err error) {
	defer mon.Task()(&ctx)(&err)

	resource, err := service.fetch(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if err := service.access(user, resource, false); err != nil {
		return Detail{}, err
	}

	attacks, err := service.db.ReferencingAttacks(ctx, resource)
	if err != nil {
		return Detail{}, Error.Wrap(err)
	}
	if attacks == nil {
		attacks = []AttackRef{}
	}
	return Detail{
		Resource:   *resource,
		UsageCount: int64(len(attacks)),
		Attacks:    attacks,
	}, nil
}

// Preview is the first lines of a resource.
type Preview struct {
	ResourceID   uuid.UUID
	FileName     string
	PreviewLines []string
	PreviewError *string
}

// GetPreview returns up to lines lines of the resource. Ephemeral and
// pending resources read their inline content; uploaded resources stream
// from object storage within a byte budget. Storage failures produce a
// preview error in the body, not a request failure.
func (service *Service) GetPreview(ctx context.Context, user *accounts.User, id uuid.UUID, lines int) (_ Preview, err error) {
	defer mon.Task()(&ctx)(&err)

	resource, err := service.fetch(ctx, id)
	if err != nil {
		return Preview{}, err
	}
	if err := service.access(user, resource, false); err != nil {
		return Preview{}, err
	}

	preview := Preview{
		ResourceID:   id,
		FileName:     resource.FileName,
		PreviewLines: []string{},
	}

	if resource.Type.Ephemeral() || !resource.IsUploaded {
		if len(resource.ContentLines) == 0 {
			message := "Resource has no inline content to preview"
			preview.PreviewError = &message
			return preview, nil
		}
		if lines > len(resource.ContentLines) {
			lines = len(resource.ContentLines)
		}
		preview.PreviewLines = append(preview.PreviewLines, resource.ContentLines[:lines]...)
		return preview, nil
	}

	reader, err := service.store.GetObject(ctx, id.String())
	if err != nil {
		message := fmt.Sprintf("Could not read resource from storage: %v", err)
		preview.PreviewError = &message
		return preview, nil
	}
	defer func() { _ = reader.Close() }()

	budget := int64(lines) * previewBytesPerLine
	data, err := io.ReadAll(io.LimitReader(reader, budget))
	if err != nil {
		message := fmt.Sprintf("Could not read resource from storage: %v", err)
		preview.PreviewError = &message
		return preview, nil
	}

	for _, line := range strings.Split(string(data), "\n") {
		if len(preview.PreviewLines) >= lines {
			break
		}
		preview.PreviewLines = append(preview.PreviewLines, strings.ToValidUTF8(strings.TrimRight(line, "\r"), "�"))
	}
	return preview, nil
}

// UpdateParams are the mutable resource metadata fields.
type UpdateParams struct {
	FileName     *string
	FileLabel    *string
	LineFormat   *string
	LineEncoding *string
	UsedForModes []string
	Tags         []string
	ProjectID    *int64
	SetProject   bool
}

// Update changes resource metadata. Superusers bypass project scoping here;
// moving a resource into a project still requires access to that project for
// regular users.
func (service *Service) Update(ctx context.Context, user *accounts.User, id uuid.UUID, params UpdateParams) (_ *Resource, err error) {
	defer mon.Task()(&ctx)(&err)

	resource, err := service.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := service.access(user, resource, true); err != nil {
		return nil, err
	}

	if params.SetProject {
		if params.ProjectID != nil && !user.IsSuperuser {
			if err := service.auth.ValidateProjectAccess(user, *params.ProjectID); err != nil {
				return nil, err
			}
		}
		resource.ProjectID = params.ProjectID
	}
	if params.FileName != nil {
		resource.FileName = *params.FileName
	}
	if params.FileLabel != nil {
		resource.FileLabel = params.FileLabel
	}
	if params.LineFormat != nil {
		resource.LineFormat = *params.LineFormat
	}
	if params.LineEncoding != nil {
		resource.LineEncoding = *params.LineEncoding
	}
	if params.UsedForModes != nil {
		resource.UsedForModes = params.UsedForModes
	}
	if params.Tags != nil {
		resource.Tags = params.Tags
	}

	if err := service.db.Update(ctx, resource); err != nil {
		return nil, Error.Wrap(err)
	}
	return resource, nil
}

// Delete removes a resource that no attack references.
func (service *Service) Delete(ctx context.Context, user *accounts.User, id uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	resource, err := service.fetch(ctx, id)
	if err != nil {
		return err
	}
	if err := service.access(user, resource, false); err != nil {
		return err
	}

	usage, err := service.db.UsageCount(ctx, resource)
	if err != nil {
		return Error.Wrap(err)
	}
	if usage > 0 {
		return problems.InvalidResourceState(fmt.Sprintf(
			"Cannot delete resource: it is referenced by %d attack(s)", usage))
	}

	if resource.IsUploaded {
		if err := service.store.RemoveObject(ctx, id.String()); err != nil && !objectstore.ErrNotFound.Has(err) {
			return Error.Wrap(err)
		}
	}
	if err := service.db.Delete(ctx, id); err != nil {
		return Error.Wrap(err)
	}

	service.bus.Publish(ctx, events.ResourceDeleted, map[string]any{
		"resource_id": id.String(),
		"file_name":   resource.FileName,
	})
	return nil
}

// Cancel aborts a pending upload: it removes any partial object and deletes
// the row. Confirmed resources cannot be canceled.
func (service *Service) Cancel(ctx context.Context, user *accounts.User, id uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	resource, err := service.fetch(ctx, id)
	if err != nil {
		return err
	}
	if err := service.access(user, resource, false); err != nil {
		return err
	}
	if resource.IsUploaded {
		return problems.InvalidResourceState(
			"Cannot cancel an upload that has already been confirmed")
	}

	if err := service.store.RemoveObject(ctx, id.String()); err != nil && !objectstore.ErrNotFound.Has(err) {
		service.log.Warn("could not remove partial object",
			zap.Stringer("resource", id), zap.Error(err))
	}
	return Error.Wrap(service.db.Delete(ctx, id))
}

func (service *Service) fetch(ctx context.Context, id uuid.UUID) (*Resource, error) {
	resource, err := service.db.Get(ctx, id)
	if err != nil {
		if ErrNotFound.Has(err) {
			return nil, problems.ResourceNotFound(id)
		}
		return nil, Error.Wrap(err)
	}
	return resource, nil
}

func (service *Service) scheduleVerification(id uuid.UUID) {
	ctx := service.verifierContext()
	service.verifiers.Add(1)
	go func() {
		defer service.verifiers.Done()

		timer := time.NewTimer(service.config.UploadTimeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		service.VerifyUpload(ctx, id)
	}()
}

// VerifyUpload runs the deferred check scheduled at initiate-upload time. It
// is deliberately conservative: any storage answer short of a confirmed
// upload, including not-found, leaves the row for the periodic cleanup chore.
// The file might still be uploading when the timer fires.
func (service *Service) VerifyUpload(ctx context.Context, id uuid.UUID) {
	var err error
	defer mon.Task()(&ctx)(&err)

	log := service.log.With(zap.Stringer("resource", id))

	resource, err := service.db.Get(ctx, id)
	if err != nil {
		if !ErrNotFound.Has(err) {
			log.Warn("upload verification could not read resource", zap.Error(err))
		}
		return
	}
	if resource.IsUploaded {
		return
	}

	exists, err := service.store.BucketExists(ctx)
	if err != nil || !exists {
		log.Error("upload verification could not check bucket", zap.Error(err))
		return
	}

	_, err = service.store.StatObject(ctx, id.String())
	switch {
	case err == nil:
		// the object arrived but confirm never did; keep the row
		log.Info("upload present but unconfirmed, keeping resource")
	case objectstore.ErrNotFound.Has(err):
		log.Info("no upload arrived, leaving resource for the cleanup chore")
	default:
		log.Warn("upload verification stat failed", zap.Error(err))
	}
}
