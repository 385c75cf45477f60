package webui

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"aichat_backend/core"
	"aichat_backend/imagegen"
)

const maxPromptFieldBytes = 32 << 10

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Message     string `json:"message"`
	ImageURL    string `json:"imageUrl"`
	ImageID     string `json:"imageId"`
	Mode        string `json:"mode"`
	Description string `json:"description,omitempty"`
}

type imageItem struct {
	ID             string    `json:"id"`
	Prompt         string    `json:"prompt"`
	ImageURL       string    `json:"imageUrl"`
	Mode           string    `json:"mode"`
	Description    string    `json:"description,omitempty"`
	SourceFilename string    `json:"sourceFilename,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type imageHistoryResponse struct {
	Images []imageItem `json:"images"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	out, err := s.deps.Images.Generate(r.Context(), imagegen.RawRequest{
		Owner:  core.OwnerFromContext(r.Context()),
		Prompt: req.Prompt,
	})
	if err != nil {
		s.writeError(w, err, "Failed to generate image")
		return
	}
	writeJSON(w, http.StatusOK, newGenerateResponse(out))
}

// handleGenerateFromImage streams the multipart body. The image part is read
// up to one byte past the upload ceiling so the pipeline can report
// FileTooLarge in its normal validation order without the rest being
// buffered.
func (s *Server) handleGenerateFromImage(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Expected a multipart form with prompt and image fields")
		return
	}
	limit := s.deps.Images.Validator().MaxUploadSize

	var prompt string
	var promptSeen bool
	var upload *imagegen.Upload
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if upload != nil && int64(len(upload.Data)) > limit {
				// The body cap cut the form short after an oversized file.
				// Parts after it were never read, so a missing prompt is
				// not the client's mistake.
				if !promptSeen {
					s.writeError(w, s.deps.Images.Validator().CheckUpload(int64(len(upload.Data)), upload.MediaType), "Failed to generate image")
					return
				}
				break
			}
			writeDecodeError(w, err)
			return
		}

		switch part.FormName() {
		case "prompt":
			promptSeen = true
			data, err := io.ReadAll(io.LimitReader(part, maxPromptFieldBytes))
			if err != nil {
				writeDecodeError(w, err)
				return
			}
			prompt = string(data)
		case "image":
			upload, err = readUpload(part, limit)
			if err != nil {
				writeDecodeError(w, err)
				return
			}
		}
		part.Close()
	}

	owner := core.OwnerFromContext(r.Context())
	if upload == nil && strings.TrimSpace(prompt) != "" && owner != "" {
		writeMessage(w, http.StatusBadRequest, "Image file is required")
		return
	}

	out, err := s.deps.Images.Generate(r.Context(), imagegen.RawRequest{
		Owner:  owner,
		Prompt: prompt,
		Upload: upload,
	})
	if err != nil {
		s.writeError(w, err, "Failed to generate image")
		return
	}
	writeJSON(w, http.StatusOK, newGenerateResponse(out))
}

// readUpload reads at most limit+1 bytes of the file part and discards the
// rest.
func readUpload(part *multipart.Part, limit int64) (*imagegen.Upload, error) {
	data, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		_, _ = io.Copy(io.Discard, part)
	}

	mediaType := part.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}
	return &imagegen.Upload{
		Filename:  part.FileName(),
		MediaType: mediaType,
		Data:      data,
	}, nil
}

func newGenerateResponse(out *imagegen.Output) generateResponse {
	resp := generateResponse{
		Message:  "Image generated successfully",
		ImageURL: out.ImageURL,
		ImageID:  out.ImageID,
		Mode:     out.Mode,
	}
	if out.Description != "" {
		resp.Description = imagegen.TruncateDescription(out.Description)
	}
	return resp
}

func (s *Server) handleImageHistory(w http.ResponseWriter, r *http.Request) {
	results, err := s.deps.Images.History(r.Context(), core.OwnerFromContext(r.Context()))
	if err != nil {
		s.writeError(w, err, "Failed to fetch image history")
		return
	}

	items := make([]imageItem, 0, len(results))
	for _, res := range results {
		items = append(items, imageItem{
			ID:             res.ID,
			Prompt:         res.Prompt,
			ImageURL:       res.ImageURL,
			Mode:           res.Mode,
			Description:    res.Description,
			SourceFilename: res.SourceFilename,
			CreatedAt:      res.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, imageHistoryResponse{Images: items})
}

// writeDecodeError maps body read failures: over the cap is 413, anything
// else is a malformed request.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	writeMessage(w, http.StatusBadRequest, "Invalid request body")
}
