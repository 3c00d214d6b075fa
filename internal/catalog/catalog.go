// Package catalog maintains the storage layout read by the gallery: it
// uploads images into orientation directories and rebuilds manifests.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"randpic/internal/gallery"
	"randpic/pkg/storage"
)

var ErrInvalidTag = errors.New("tag must be a single non-empty path segment")

// Catalog writes images and manifests for one base prefix.
type Catalog struct {
	engine  storage.WritableEngine
	gallery *gallery.Gallery
}

func New(engine storage.WritableEngine, basePrefix string) *Catalog {
	return &Catalog{
		engine:  engine,
		gallery: gallery.New(engine, basePrefix),
	}
}

// Engine returns the storage the catalog writes to.
func (c *Catalog) Engine() storage.WritableEngine {
	return c.engine
}

// Gallery returns the read side over the same storage.
func (c *Catalog) Gallery() *gallery.Gallery {
	return c.gallery
}

func checkTag(tag string) error {
	if tag == "" || strings.Contains(tag, "/") || tag == "." || tag == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}
	return nil
}

// DetectOrientation decodes the image header from r and classifies its
// dimensions. It also returns the registered format name, e.g. "png".
func DetectOrientation(r io.Reader) (gallery.Orientation, string, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return "", "", fmt.Errorf("decode image header: %w", err)
	}
	return gallery.ClassifyDimensions(cfg.Width, cfg.Height), format, nil
}

// UploadResult describes one stored image.
type UploadResult struct {
	Key         string
	Orientation gallery.Orientation
	Size        int64
}

// UploadFile stores the file at filePath under tag. Passing gallery.Any for
// o detects the orientation from the image dimensions.
func (c *Catalog) UploadFile(ctx context.Context, tag string, o gallery.Orientation, filePath string) (UploadResult, error) {
	if err := checkTag(tag); err != nil {
		return UploadResult{}, err
	}
	if o != gallery.Any && !o.Stored() {
		return UploadResult{}, fmt.Errorf("invalid orientation %q, valid values: %s", o, gallery.ValidValues())
	}

	f, err := os.Open(filePath)
	if err != nil {
		return UploadResult{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return UploadResult{}, err
	}
	if !info.Mode().IsRegular() {
		return UploadResult{}, fmt.Errorf("%s is not a regular file", filePath)
	}

	name := filepath.Base(filePath)
	contentType := mime.TypeByExtension(filepath.Ext(name))

	if o == gallery.Any {
		detected, format, err := DetectOrientation(f)
		if err != nil {
			return UploadResult{}, fmt.Errorf("%s: %w", filePath, err)
		}
		o = detected
		if contentType == "" {
			contentType = "image/" + format
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return UploadResult{}, err
		}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := c.gallery.ImageKey(tag, o, name)
	if err := c.engine.PutObject(ctx, key, f, info.Size(), contentType); err != nil {
		return UploadResult{}, fmt.Errorf("upload %s: %w", key, err)
	}

	slog.Debug("Uploaded image", "key", key, "orientation", o, "size", info.Size())
	return UploadResult{Key: key, Orientation: o, Size: info.Size()}, nil
}

// RebuildManifests rewrites each orientation's manifest from the objects
// stored next to it, sorted by name. Orientations with neither images nor a
// manifest are left absent. The returned counts are per orientation.
func (c *Catalog) RebuildManifests(ctx context.Context, tag string) (map[gallery.Orientation]int, error) {
	if err := checkTag(tag); err != nil {
		return nil, err
	}

	counts := make(map[gallery.Orientation]int, len(gallery.Orientations))
	for _, o := range gallery.Orientations {
		dir := path.Dir(c.gallery.ManifestKey(tag, o)) + "/"

		listing, err := c.engine.ListObjects(ctx, dir, "/")
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}

		files := make([]string, 0, len(listing.Keys))
		hasManifest := false
		for _, key := range listing.Keys {
			name := strings.TrimPrefix(key, dir)
			switch {
			case name == gallery.ManifestName:
				hasManifest = true
			case name == "" || strings.HasPrefix(name, "."):
				// hidden
			default:
				files = append(files, name)
			}
		}

		if len(files) == 0 && !hasManifest {
			continue
		}

		slices.Sort(files)
		if err := c.writeManifest(ctx, tag, o, files); err != nil {
			return nil, err
		}
		counts[o] = len(files)
	}

	return counts, nil
}

func (c *Catalog) writeManifest(ctx context.Context, tag string, o gallery.Orientation, files []string) error {
	data, err := json.Marshal(files)
	if err != nil {
		return err
	}

	key := c.gallery.ManifestKey(tag, o)
	if err := c.engine.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return fmt.Errorf("write manifest %s: %w", key, err)
	}

	slog.Info("Wrote manifest", "key", key, "images", len(files))
	return nil
}
