package media

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/PaulBabatuyi/pairchat/internal/data"
)

// Compressor shrinks an asset. Any error means "keep the original".
type Compressor interface {
	Compress(ctx context.Context, src []byte) ([]byte, error)
}

// Prepared is an attachment ready for upload.
type Prepared struct {
	File
	Kind       data.MediaType
	Compressed bool
}

// Preparer classifies, size-checks and optimizes attachments.
type Preparer struct {
	Policy Policy
	Images Compressor // nil skips image optimization
	Videos Compressor // nil skips video optimization
	Log    logrus.FieldLogger
}

// Prepare returns the asset to upload. The only error it returns is the size
// policy rejection, raised before any other work; optimization failures fall
// back to the original bytes.
func (p *Preparer) Prepare(ctx context.Context, f File) (Prepared, error) {
	if err := p.Policy.Check(f.Size()); err != nil {
		return Prepared{}, err
	}

	out := Prepared{File: f, Kind: Classify(f.MIMEType, f.Name)}

	var c Compressor
	var mimeType, ext string
	switch out.Kind {
	case data.MediaImage:
		c, mimeType, ext = p.Images, "image/jpeg", ".jpg"
	case data.MediaVideo:
		c, mimeType, ext = p.Videos, "video/mp4", ".mp4"
	}
	if c == nil {
		return out, nil
	}

	small, err := c.Compress(ctx, f.Data)
	if err != nil {
		p.logger().WithFields(logrus.Fields{
			"file":  f.Name,
			"kind":  out.Kind,
			"size":  f.Size(),
			"error": err,
		}).Debug("media optimization skipped, uploading original")
		return out, nil
	}

	out.Data = small
	out.MIMEType = mimeType
	out.Name = replaceExt(f.Name, ext)
	out.Compressed = true
	return out, nil
}

func (p *Preparer) logger() logrus.FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}

func replaceExt(name, ext string) string {
	if name == "" {
		return "attachment" + ext
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
