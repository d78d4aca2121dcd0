// Package media classifies attachments and shrinks them before upload.
package media

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/PaulBabatuyi/pairchat/internal/data"
)

// File is an attachment as selected by the user.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the attachment size in bytes.
func (f File) Size() int64 { return int64(len(f.Data)) }

var officeMIME = map[string]bool{
	"application/msword":            true,
	"application/vnd.ms-excel":      true,
	"application/vnd.ms-powerpoint": true,
	"application/rtf":               true,
}

var extKinds = map[string]data.MediaType{
	".jpg": data.MediaImage, ".jpeg": data.MediaImage, ".png": data.MediaImage,
	".gif": data.MediaImage, ".webp": data.MediaImage, ".heic": data.MediaImage,
	".bmp": data.MediaImage,

	".mp4": data.MediaVideo, ".mov": data.MediaVideo, ".webm": data.MediaVideo,
	".mkv": data.MediaVideo, ".avi": data.MediaVideo, ".m4v": data.MediaVideo,
	".3gp": data.MediaVideo,

	".mp3": data.MediaAudio, ".wav": data.MediaAudio, ".ogg": data.MediaAudio,
	".m4a": data.MediaAudio, ".aac": data.MediaAudio, ".flac": data.MediaAudio,
	".opus": data.MediaAudio,

	".pdf": data.MediaPDF,

	".doc": data.MediaOffice, ".docx": data.MediaOffice, ".xls": data.MediaOffice,
	".xlsx": data.MediaOffice, ".ppt": data.MediaOffice, ".pptx": data.MediaOffice,
	".odt": data.MediaOffice, ".ods": data.MediaOffice, ".odp": data.MediaOffice,
	".rtf": data.MediaOffice, ".csv": data.MediaOffice,
}

// Classify maps a declared MIME type to a media type, falling back to the
// file extension when the MIME type is missing or generic.
func Classify(mimeType, fileName string) data.MediaType {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = ""
	}
	mt = strings.ToLower(mt)

	switch {
	case strings.HasPrefix(mt, "image/"):
		return data.MediaImage
	case strings.HasPrefix(mt, "video/"):
		return data.MediaVideo
	case strings.HasPrefix(mt, "audio/"):
		return data.MediaAudio
	case mt == "application/pdf":
		return data.MediaPDF
	case officeMIME[mt],
		strings.HasPrefix(mt, "application/vnd.openxmlformats-officedocument."),
		strings.HasPrefix(mt, "application/vnd.oasis.opendocument."):
		return data.MediaOffice
	}

	if kind, ok := extKinds[strings.ToLower(filepath.Ext(fileName))]; ok {
		return kind
	}
	return data.MediaFile
}
