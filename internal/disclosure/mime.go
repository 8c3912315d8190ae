package disclosure

import (
	"mime"
	"net/http"
	"path/filepath"
)

// detectMimeType infers a content type from the file extension, falling back
// to content sniffing of the decrypted bytes
func detectMimeType(fileName string, data []byte) string {
	if ext := filepath.Ext(fileName); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return http.DetectContentType(data)
}
