package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/constants"
	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/posts"
)

// imagesField is the multipart field carrying uploaded images.
const imagesField = "images"

var errMultipartForm = errors.New("failed to parse multipart form")

// readUploadedImages loads every file of the images field into memory.
func readUploadedImages(files []*multipart.FileHeader) ([]posts.ImageInput, error) {
	images := make([]posts.ImageInput, 0, len(files))
	for _, fileHeader := range files {
		if err := func() error {
			file, err := fileHeader.Open()
			if err != nil {
				return fmt.Errorf("failed to open file: %s", fileHeader.Filename)
			}
			defer file.Close()

			data, err := io.ReadAll(file)
			if err != nil {
				return fmt.Errorf("failed to read file: %s", fileHeader.Filename)
			}

			images = append(images, posts.ImageInput{
				Name: filepath.Base(fileHeader.Filename),
				Data: data,
			})
			return nil
		}(); err != nil {
			return nil, err
		}
	}
	return images, nil
}

// parseImageUpload parses a multipart request and returns its images. An
// empty or oversized image list is left for the service to reject.
func parseImageUpload(w http.ResponseWriter, r *http.Request) ([]posts.ImageInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return nil, errMultipartForm
	}
	return readUploadedImages(r.MultipartForm.File[imagesField])
}
