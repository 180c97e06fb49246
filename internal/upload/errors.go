package upload

import (
	"errors"

	"github.com/Real-Bird/upload-server/internal/apperr"
)

var (
	// ErrTooManyFiles signals more files under the upload field than allowed.
	ErrTooManyFiles = apperr.New(apperr.KindBadRequest, "too many files")
	// ErrFileTooLarge signals a single file above the per-file limit.
	ErrFileTooLarge = apperr.New(apperr.KindTooLarge, "file too large")
	// ErrRequestTooLarge signals a request body above the whole-request limit.
	ErrRequestTooLarge = apperr.New(apperr.KindTooLarge, "request body too large")
	// ErrInvalidForm signals a body that is not a readable multipart form.
	ErrInvalidForm = apperr.New(apperr.KindBadRequest, "invalid multipart form")
	// ErrUnexpectedField signals a file part under a field other than the upload field.
	ErrUnexpectedField = apperr.New(apperr.KindBadRequest, "unexpected field")

	// ErrNameTaken is returned by a Store when the target name already exists.
	ErrNameTaken = errors.New("name already taken")
)
