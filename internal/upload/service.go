package upload

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"time"
)

const maxNameAttempts = 100

// Service validates multipart uploads and hands them to a Store.
type Service struct {
	store  Store
	limits Limits
	now    func() time.Time
}

// NewService constructs an upload service.
func NewService(store Store, limits Limits) *Service {
	return &Service{
		store:  store,
		limits: limits,
		now:    time.Now,
	}
}

// Limits returns the limits enforced by Save.
func (s *Service) Limits() Limits {
	return s.limits
}

// Save checks every file against the limits before writing any of them, then stores them in order.
// Files written before a failure are kept; the records for them are returned with the error.
func (s *Service) Save(ctx context.Context, files []*multipart.FileHeader) ([]Record, error) {
	if len(files) > s.limits.MaxFiles {
		return nil, fmt.Errorf("%d files under %q, limit %d: %w", len(files), s.limits.Field, s.limits.MaxFiles, ErrTooManyFiles)
	}
	for _, fh := range files {
		if fh.Size > s.limits.MaxFileSize {
			return nil, fmt.Errorf("%s is %d bytes, limit %d: %w", fh.Filename, fh.Size, s.limits.MaxFileSize, ErrFileTooLarge)
		}
	}

	records := make([]Record, 0, len(files))
	for _, fh := range files {
		rec, err := s.saveOne(ctx, fh)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Service) saveOne(ctx context.Context, fh *multipart.FileHeader) (Record, error) {
	file, err := fh.Open()
	if err != nil {
		return Record{}, fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()

	contentType := detectContentType(fh)
	name := StoredName(fh.Filename, s.now())

	for n := 0; n < maxNameAttempts; n++ {
		candidate := withSuffix(name, n)
		location, err := s.store.Create(ctx, candidate, file, fh.Size, contentType)
		if errors.Is(err, ErrNameTaken) {
			continue
		}
		if err != nil {
			return Record{}, fmt.Errorf("store %s: %w", fh.Filename, err)
		}
		return Record{
			Field:        s.limits.Field,
			OriginalName: fh.Filename,
			StoredName:   candidate,
			Location:     location,
			Size:         fh.Size,
			ContentType:  contentType,
		}, nil
	}
	return Record{}, fmt.Errorf("no free name for %s after %d attempts", fh.Filename, maxNameAttempts)
}

func detectContentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
