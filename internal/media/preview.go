package media

import (
	"net/url"

	"github.com/PaulBabatuyi/pairchat/internal/data"
)

// PreviewMode tells a renderer how to present an attachment.
type PreviewMode string

const (
	PreviewInline   PreviewMode = "inline"
	PreviewViewer   PreviewMode = "viewer"
	PreviewDownload PreviewMode = "download"
)

const officeViewer = "https://docs.google.com/viewer?embedded=true&url="

// Preview returns the presentation mode and the URL to render for an
// attachment. Office documents are wrapped in the hosted document viewer.
func Preview(kind data.MediaType, mediaURL string) (PreviewMode, string) {
	switch kind {
	case data.MediaImage, data.MediaVideo, data.MediaAudio, data.MediaPDF:
		return PreviewInline, mediaURL
	case data.MediaOffice:
		return PreviewViewer, officeViewer + url.QueryEscape(mediaURL)
	default:
		return PreviewDownload, mediaURL
	}
}

// Label is the summary preview shown for a media-only message.
func Label(kind data.MediaType, fileName string) string {
	switch kind {
	case data.MediaImage:
		return "📷 Photo"
	case data.MediaVideo:
		return "🎥 Video"
	case data.MediaAudio:
		return "🎵 Audio"
	case data.MediaPDF, data.MediaOffice:
		if fileName != "" {
			return "📄 " + fileName
		}
		return "📄 Document"
	default:
		if fileName != "" {
			return "📎 " + fileName
		}
		return "📎 File"
	}
}
