package imagegen

import (
	"fmt"
	"strings"
)

// DefaultMaxUploadSize is the byte ceiling for a source image (10 MiB).
const DefaultMaxUploadSize int64 = 10 << 20

// Validator checks request well-formedness. It has no side effects and never
// touches the network.
type Validator struct {
	MaxUploadSize int64
}

// NewValidator returns a Validator with the given ceiling. A non-positive
// size falls back to DefaultMaxUploadSize.
func NewValidator(maxUploadSize int64) *Validator {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &Validator{MaxUploadSize: maxUploadSize}
}

// Validate normalizes raw into a DirectRequest or DerivedRequest.
//
// Checks run in a fixed order so the reported kind is deterministic when
// several apply: MissingIdentity, EmptyPrompt, FileTooLarge,
// UnsupportedFileType.
func (v *Validator) Validate(raw RawRequest) (Request, error) {
	owner := strings.TrimSpace(raw.Owner)
	if owner == "" {
		return nil, newInputError(KindMissingIdentity, "")
	}

	prompt := strings.TrimSpace(raw.Prompt)
	if prompt == "" {
		return nil, newInputError(KindEmptyPrompt, "")
	}

	if raw.Upload == nil {
		return DirectRequest{Owner: owner, Prompt: prompt}, nil
	}

	if err := v.CheckUpload(int64(len(raw.Upload.Data)), raw.Upload.MediaType); err != nil {
		return nil, err
	}

	return DerivedRequest{Owner: owner, Prompt: prompt, Image: *raw.Upload}, nil
}

// CheckUpload applies the file rules on their own. The HTTP layer uses it to
// reject oversized multipart parts before buffering them.
func (v *Validator) CheckUpload(size int64, mediaType string) error {
	if size > v.MaxUploadSize {
		return newInputError(KindFileTooLarge,
			fmt.Sprintf("Image file is too large (max %s)", formatSize(v.MaxUploadSize)))
	}
	if !IsImageMediaType(mediaType) {
		return newInputError(KindUnsupportedFileType, "")
	}
	return nil
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<10:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
