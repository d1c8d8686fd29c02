package domain

import "strings"

// DefaultArtifactType is used when the model does not declare a content type.
const DefaultArtifactType = "image/png"

// Artifact is the binary image produced by the generative model prior to storage.
type Artifact struct {
	Data        []byte
	ContentType string
}

// ImageType returns the declared content type when it is an image type,
// otherwise DefaultArtifactType.
func (a Artifact) ImageType() string {
	ct := strings.ToLower(strings.TrimSpace(a.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if _, ok := imageExtensions[ct]; ok {
		return ct
	}
	return DefaultArtifactType
}

// Extension returns the file extension matching ImageType.
func (a Artifact) Extension() string {
	return imageExtensions[a.ImageType()]
}

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}
