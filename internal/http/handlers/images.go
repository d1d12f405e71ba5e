package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"bibble/internal/domain"
)

// ImagesEdit runs a synchronous image edit from a multipart form with a
// prompt, one or more image files and an optional mask.
func (a *App) ImagesEdit(w http.ResponseWriter, r *http.Request) {
	limit := a.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "upload too large")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := imageParts(r.MultipartForm.File)
	if len(headers) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "at least one image is required")
		return
	}
	images := make([][]byte, 0, len(headers))
	for _, fh := range headers {
		data, err := readFormFile(fh)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		images = append(images, data)
	}

	var mask []byte
	if masks := r.MultipartForm.File["mask"]; len(masks) > 0 {
		data, err := readFormFile(masks[0])
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		mask = data
	}

	job, err := a.Generation.EditImage(r.Context(), domain.EditRequest{
		Prompt:  r.FormValue("prompt"),
		Images:  images,
		Mask:    mask,
		Size:    strings.TrimSpace(r.FormValue("size")),
		Quality: strings.TrimSpace(r.FormValue("quality")),
	})
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toJobResponse(job))
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return data, nil
}

// imageParts collects uploads sent as "image", "image[]" or indexed
// "image[N]" keys. Indexed keys follow in ascending index order.
func imageParts(files map[string][]*multipart.FileHeader) []*multipart.FileHeader {
	headers := append([]*multipart.FileHeader(nil), files["image"]...)
	headers = append(headers, files["image[]"]...)

	type indexed struct {
		n     int
		parts []*multipart.FileHeader
	}
	var keyed []indexed
	for key, parts := range files {
		inner, ok := strings.CutPrefix(key, "image[")
		if !ok {
			continue
		}
		inner, ok = strings.CutSuffix(inner, "]")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(inner)
		if err != nil || n < 0 {
			continue
		}
		keyed = append(keyed, indexed{n: n, parts: parts})
	}
	sort.Slice(keyed, func(i, j int) bool { return keyed[i].n < keyed[j].n })
	for _, k := range keyed {
		headers = append(headers, k.parts...)
	}
	return headers
}
