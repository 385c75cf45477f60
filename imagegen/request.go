package imagegen

// Upload is a received source image. Data is read-only once received; no
// stage mutates it.
type Upload struct {
	Filename  string
	MediaType string
	Data      []byte
}

// Request is a validated generation request. It is one of DirectRequest or
// DerivedRequest; the branch is chosen by type, never by inspecting fields.
type Request interface {
	OwnerID() string
	UserPrompt() string
	Mode() string
	request()
}

// DirectRequest generates an image from the user's prompt alone.
type DirectRequest struct {
	Owner  string
	Prompt string
}

func (r DirectRequest) OwnerID() string    { return r.Owner }
func (r DirectRequest) UserPrompt() string { return r.Prompt }
func (r DirectRequest) Mode() string       { return ModeDirect }
func (DirectRequest) request()             {}

// DerivedRequest first describes Image with the prompt as instruction, then
// synthesizes from that description.
type DerivedRequest struct {
	Owner  string
	Prompt string
	Image  Upload
}

func (r DerivedRequest) OwnerID() string    { return r.Owner }
func (r DerivedRequest) UserPrompt() string { return r.Prompt }
func (r DerivedRequest) Mode() string       { return ModeDerived }
func (DerivedRequest) request()             {}

// RawRequest is what the HTTP layer hands to the pipeline before validation.
// Upload is nil for the direct branch.
type RawRequest struct {
	Owner  string
	Prompt string
	Upload *Upload
}

// Mode values recorded on every result.
const (
	ModeDirect  = "direct"
	ModeDerived = "derived-from-image"
)
