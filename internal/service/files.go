// Package service holds the business logic sitting between the HTTP
// handlers and the stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"skyvault/file-api/internal/model"
	"skyvault/file-api/internal/storage"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const idCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newID() (string, error) {
	return gonanoid.Generate(idCharset, 16)
}

// Files is the single authority for file access decisions and URL
// issuance. Visibility lives in two places, the is_public column and
// the store-side ACL/tag, and every transition of either half goes
// through here with the store mutated first and the database only
// after the store call succeeded. Nothing else in the codebase may
// touch either half.
//
// Concurrent operations on the same file are not serialized. Two
// simultaneous toggles can leave the tag and the flag reflecting
// different rounds of the toggle sequence, last write wins on each
// half independently.
type Files struct {
	db    *gorm.DB
	store storage.Store
	audit *Audit

	maxUpload int64
	signTTL   time.Duration
	baseURL   string
}

type FilesConfig struct {
	// MaxUploadSize is in bytes
	MaxUploadSize int64

	// SignedURLTTL bounds the lifetime of issued signed URLs
	SignedURLTTL time.Duration

	// ShareBaseURL is the application origin share links point at
	ShareBaseURL string
}

func NewFiles(db *gorm.DB, store storage.Store, audit *Audit, cfg FilesConfig) *Files {
	return &Files{
		db:        db,
		store:     store,
		audit:     audit,
		maxUpload: cfg.MaxUploadSize,
		signTTL:   cfg.SignedURLTTL,
		baseURL:   cfg.ShareBaseURL,
	}
}

type UploadInput struct {
	Name string
	Size int64

	// Trusted as declared by the upload envelope, not re-sniffed
	ContentType string

	Folder string
	Public bool
	Body   io.Reader
}

// Upload writes the object first and only creates the metadata row
// once the store write succeeded. If the row creation then fails the
// object is left orphaned in the store, it is logged with its key for
// manual reconciliation and the operation still fails.
func (f *Files) Upload(ctx context.Context, caller string, in UploadInput) (*model.File, error) {
	if caller == "" {
		return nil, ErrUnauthorized
	}

	if in.Name == "" {
		return nil, &ValidationError{Reason: "no file name provided"}
	}

	if in.Size <= 0 {
		return nil, &ValidationError{Reason: "file is empty"}
	}

	if in.Size > f.maxUpload {
		return nil, &ValidationError{Reason: fmt.Sprintf("file exceeds the %d byte upload limit", f.maxUpload)}
	}

	key := storage.ObjectKey(caller, in.Name)

	if err := f.store.Put(ctx, key, in.Body, in.Size, in.ContentType, in.Public); err != nil {
		return nil, &StorageError{Err: err}
	}

	id, err := newID()
	if err != nil {
		return nil, &MetadataError{Err: err}
	}

	file := &model.File{
		ID:         id,
		UserID:     caller,
		Key:        key,
		Name:       in.Name,
		Size:       in.Size,
		Type:       in.ContentType,
		Folder:     in.Folder,
		IsPublic:   in.Public,
		UploadedAt: time.Now(),
	}

	if err := f.db.WithContext(ctx).Create(file).Error; err != nil {
		zap.L().Error("Orphaned object left in store after metadata write failed",
			zap.String("key", key),
			zap.String("user_id", caller),
			zap.Error(err))

		return nil, &MetadataError{Err: err}
	}

	f.audit.Record(caller, model.ActionUpload, "Uploaded file: "+in.Name, &file.ID)

	return file, nil
}

// DownloadURL resolves which kind of URL the caller gets for a file.
// caller may be empty for anonymous requests. Public files get the
// direct non-expiring URL, falling back to a signed URL issued as the
// owner when the tag lookup fails. Private files require the owner and
// get a signed URL bounded by the configured TTL.
func (f *Files) DownloadURL(ctx context.Context, caller, fileID string) (string, *model.File, error) {
	file, err := f.load(ctx, fileID)
	if err != nil {
		return "", nil, err
	}

	if !file.IsPublic {
		if caller == "" {
			return "", nil, ErrUnauthorized
		}

		if caller != file.UserID {
			return "", nil, ErrForbidden
		}
	}

	url, err := f.resolveURL(ctx, file)
	if err != nil {
		return "", nil, err
	}

	// Touched only once a URL was actually issued
	now := time.Now()
	if err := f.db.WithContext(ctx).
		Model(file).
		Update("last_accessed", now).
		Error; err != nil {
		return "", nil, &MetadataError{Err: err}
	}
	file.LastAccessed = &now

	if caller != "" {
		f.audit.Record(caller, model.ActionDownload, "Downloaded file: "+file.Name, &file.ID)
	}

	return url, file, nil
}

// ToggleVisibility flips a file between public and private. The store
// ACL and tag change first, the database flag only after that call
// succeeded, so the flag is never reported flipped without the store
// half having been applied.
func (f *Files) ToggleVisibility(ctx context.Context, caller, fileID string) (*model.File, error) {
	if caller == "" {
		return nil, ErrUnauthorized
	}

	file, err := f.load(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if file.UserID != caller {
		return nil, ErrForbidden
	}

	wasPublic := file.IsPublic
	public := !wasPublic

	if err := f.store.SetVisibility(ctx, caller, file.Key, public); err != nil {
		return nil, &StorageError{Err: err}
	}

	if err := f.db.WithContext(ctx).
		Model(file).
		Update("is_public", public).
		Error; err != nil {
		// The two visibility halves now disagree until the toggle is
		// retried, make sure that's loud
		zap.L().Error("Store visibility changed but metadata update failed",
			zap.String("file_id", file.ID),
			zap.Bool("store_public", public),
			zap.Error(err))

		return nil, &MetadataError{Err: err}
	}

	detail := fmt.Sprintf("Toggled file visibility: %s (%t -> %t)", file.Name, wasPublic, public)
	file.IsPublic = public

	f.audit.Record(caller, model.ActionToggleVisibility, detail, &file.ID)

	return file, nil
}

// ShareLink builds a link to the application's own public viewer
// route. Private files are refused for everyone including the owner.
func (f *Files) ShareLink(ctx context.Context, caller, fileID string) (string, *model.File, error) {
	file, err := f.load(ctx, fileID)
	if err != nil {
		return "", nil, err
	}

	if !file.IsPublic {
		return "", nil, ErrForbidden
	}

	shareURL := f.baseURL + "/file/view/" + file.ID

	if caller != "" {
		f.audit.Record(caller, model.ActionShare, "Shared file: "+file.Name, &file.ID)
	}

	return shareURL, file, nil
}

// Delete removes the object first and the metadata row only on
// success, so a row never points at a missing object. The audit entry
// carries the file name captured before deletion and no subject id
// since the row is gone.
func (f *Files) Delete(ctx context.Context, caller, fileID string) error {
	if caller == "" {
		return ErrUnauthorized
	}

	file, err := f.load(ctx, fileID)
	if err != nil {
		return err
	}

	if file.UserID != caller {
		return ErrForbidden
	}

	if err := f.store.Delete(ctx, caller, file.Key); err != nil {
		return &StorageError{Err: err}
	}

	if err := f.db.WithContext(ctx).Delete(file).Error; err != nil {
		zap.L().Error("Object deleted from store but metadata row remains",
			zap.String("file_id", file.ID),
			zap.String("key", file.Key),
			zap.Error(err))

		return &MetadataError{Err: err}
	}

	f.audit.Record(caller, model.ActionDelete, "Deleted file: "+file.Name, nil)

	return nil
}

type FileWithURL struct {
	model.File
	URL string `json:"url"`
}

// List returns the caller's files in the given folder, newest first.
// folder filters on exact equality and "" means the root grouping, not
// "everything". URLs are resolved the same way DownloadURL picks them
// but nothing touches last_accessed and a single VIEW_FILES entry
// covers the whole listing.
func (f *Files) List(ctx context.Context, caller, folder string) ([]FileWithURL, error) {
	if caller == "" {
		return nil, ErrUnauthorized
	}

	var files []model.File

	err := f.db.WithContext(ctx).
		Where("user_id = ? AND folder = ?", caller, folder).
		Order("uploaded_at DESC").
		Find(&files).
		Error
	if err != nil {
		return nil, &MetadataError{Err: err}
	}

	out := make([]FileWithURL, 0, len(files))
	for i := range files {
		url, err := f.resolveURL(ctx, &files[i])
		if err != nil {
			return nil, err
		}

		out = append(out, FileWithURL{File: files[i], URL: url})
	}

	f.audit.Record(caller, model.ActionViewFiles, "Listed files in folder: "+folder, nil)

	return out, nil
}

func (f *Files) load(ctx context.Context, fileID string) (*model.File, error) {
	var file model.File

	err := f.db.WithContext(ctx).
		Where("id = ?", fileID).
		First(&file).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, &MetadataError{Err: err}
	}

	return &file, nil
}

func (f *Files) resolveURL(ctx context.Context, file *model.File) (string, error) {
	if file.IsPublic {
		if url, ok := f.store.PublicURL(ctx, file.Key); ok {
			return url, nil
		}

		// Tag lookup failed or the tag drifted, sign as the owner so
		// the read still works
	}

	url, err := f.store.SignedURL(ctx, file.UserID, file.Key, f.signTTL)
	if err != nil {
		return "", &StorageError{Err: err}
	}

	return url, nil
}
