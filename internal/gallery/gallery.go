package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"

	"randpic/pkg/storage"

	"golang.org/x/sync/errgroup"
)

const (
	// ManifestName is the object name of the per-orientation file list.
	ManifestName = "manifest.json"

	// MaxManifestBytes bounds how much of a manifest is read.
	MaxManifestBytes = 8 << 20

	delimiter = "/"
)

// Gallery resolves the active tag, reads manifests and picks images from a
// storage engine laid out as <base>/<tag>/<orientation>/<file>. It holds no
// mutable state; every call reads storage afresh.
type Gallery struct {
	engine     storage.StorageEngine
	basePrefix string
	intn       func(n int) int
}

type Option func(*Gallery)

// WithRandomSource replaces the function used to draw an index in [0, n).
func WithRandomSource(intn func(n int) int) Option {
	return func(g *Gallery) {
		g.intn = intn
	}
}

// New returns a Gallery reading from engine under basePrefix.
func New(engine storage.StorageEngine, basePrefix string, opts ...Option) *Gallery {
	g := &Gallery{
		engine:     engine,
		basePrefix: NormalizePrefix(basePrefix),
		intn:       rand.IntN,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NormalizePrefix makes a non-empty prefix end with the delimiter.
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimLeft(prefix, delimiter)
	if prefix != "" && !strings.HasSuffix(prefix, delimiter) {
		prefix += delimiter
	}
	return prefix
}

// BasePrefix returns the normalized base prefix.
func (g *Gallery) BasePrefix() string {
	return g.basePrefix
}

// ManifestKey is the storage key of the manifest for tag and o.
func (g *Gallery) ManifestKey(tag string, o Orientation) string {
	return g.basePrefix + tag + delimiter + string(o) + delimiter + ManifestName
}

// ImageKey is the storage key of an image file.
func (g *Gallery) ImageKey(tag string, o Orientation, file string) string {
	return g.basePrefix + tag + delimiter + string(o) + delimiter + file
}

func (g *Gallery) checkEngine() error {
	if g.engine == nil {
		return newError(ErrConfiguration, "storage bucket not bound")
	}
	return nil
}

// ResolveTag returns the first directory listed under the base prefix.
// Additional directories are ignored.
func (g *Gallery) ResolveTag(ctx context.Context) (string, error) {
	if err := g.checkEngine(); err != nil {
		return "", err
	}

	listing, err := g.engine.ListObjects(ctx, g.basePrefix, delimiter)
	if err != nil {
		return "", fmt.Errorf("list tag directories: %w", err)
	}

	if len(listing.Prefixes) == 0 {
		return "", newError(ErrConfiguration, "no tag directories found under %q", g.basePrefix)
	}

	if len(listing.Prefixes) > 1 {
		slog.Debug("Multiple tag directories found, using the first", "prefixes", listing.Prefixes)
	}

	tag := strings.TrimPrefix(listing.Prefixes[0], g.basePrefix)
	tag = strings.TrimSuffix(tag, delimiter)
	if tag == "" {
		return "", &Error{Kind: ErrConfiguration, Message: ErrUndeterminedTag.Error(), cause: ErrUndeterminedTag}
	}

	return tag, nil
}

// Manifest is the decoded file list of one orientation. Found is false when
// the manifest object does not exist.
type Manifest struct {
	Orientation Orientation
	Files       []string
	Found       bool
}

// ReadManifest fetches and decodes one manifest. A missing object yields an
// empty, not-found Manifest. Content that is not a JSON array of strings is
// treated as an empty list. Only storage failures are returned as errors.
func (g *Gallery) ReadManifest(ctx context.Context, tag string, o Orientation) (Manifest, error) {
	if err := g.checkEngine(); err != nil {
		return Manifest{}, err
	}

	key := g.ManifestKey(tag, o)
	m := Manifest{Orientation: o}

	obj, err := g.engine.GetObject(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return m, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("get manifest %s: %w", key, err)
	}
	defer obj.Body.Close()

	m.Found = true

	data, err := io.ReadAll(io.LimitReader(obj.Body, MaxManifestBytes+1))
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s: %w", key, err)
	}
	if len(data) > MaxManifestBytes {
		return Manifest{}, fmt.Errorf("manifest %s exceeds %d bytes", key, MaxManifestBytes)
	}

	m.Files = decodeFileList(key, data)
	return m, nil
}

func decodeFileList(key string, data []byte) []string {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("Manifest is not valid JSON, treating as empty", "key", key, "err", err)
		return nil
	}

	entries, ok := raw.([]any)
	if !ok {
		slog.Warn("Manifest is not a JSON array, treating as empty", "key", key)
		return nil
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		name, ok := entry.(string)
		if !ok {
			slog.Warn("Skipping non-string manifest entry", "key", key, "entry", entry)
			continue
		}
		files = append(files, name)
	}
	return files
}

// ReadAll fetches the manifests of every stored orientation concurrently.
// The result is in Orientations order.
func (g *Gallery) ReadAll(ctx context.Context, tag string) ([]Manifest, error) {
	manifests := make([]Manifest, len(Orientations))

	eg, ctx := errgroup.WithContext(ctx)
	for i, o := range Orientations {
		eg.Go(func() error {
			m, err := g.ReadManifest(ctx, tag, o)
			if err != nil {
				return err
			}
			manifests[i] = m
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return manifests, nil
}

// Summary holds the image counts shown on the index page.
type Summary struct {
	Tag    string
	Counts map[Orientation]int
	Total  int
}

// Summarize resolves the tag and counts the files in each manifest.
func (g *Gallery) Summarize(ctx context.Context) (Summary, error) {
	tag, err := g.ResolveTag(ctx)
	if err != nil {
		return Summary{}, err
	}

	manifests, err := g.ReadAll(ctx, tag)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Tag: tag, Counts: make(map[Orientation]int, len(manifests))}
	for _, m := range manifests {
		summary.Counts[m.Orientation] = len(m.Files)
		summary.Total += len(m.Files)
	}
	return summary, nil
}

// Candidate is a file name together with the orientation it was listed in.
type Candidate struct {
	File        string
	Orientation Orientation
}

// Pick draws one candidate uniformly at random. For Any the draw is over the
// flat union of all manifests, so larger orientations are picked more often.
// For a concrete orientation a missing or empty manifest is ErrNotFound.
func (g *Gallery) Pick(ctx context.Context, tag string, o Orientation) (Candidate, error) {
	if o == Any {
		return g.pickAny(ctx, tag)
	}

	if !o.Stored() {
		return Candidate{}, newError(ErrInvalidArgument, "invalid orientation parameter, valid values: %s", ValidValues())
	}

	m, err := g.ReadManifest(ctx, tag, o)
	if err != nil {
		return Candidate{}, err
	}

	if !m.Found {
		return Candidate{}, newError(ErrNotFound, "category '%s' does not exist or is missing %s", o, ManifestName)
	}
	if len(m.Files) == 0 {
		return Candidate{}, newError(ErrNotFound, "category '%s' has no images", o)
	}

	return Candidate{File: m.Files[g.intn(len(m.Files))], Orientation: o}, nil
}

func (g *Gallery) pickAny(ctx context.Context, tag string) (Candidate, error) {
	manifests, err := g.ReadAll(ctx, tag)
	if err != nil {
		return Candidate{}, err
	}

	var candidates []Candidate
	for _, m := range manifests {
		for _, file := range m.Files {
			candidates = append(candidates, Candidate{File: file, Orientation: m.Orientation})
		}
	}

	if len(candidates) == 0 {
		return Candidate{}, newError(ErrNotFound, "no images are available in the gallery")
	}

	return candidates[g.intn(len(candidates))], nil
}

// Open fetches the image behind c. A manifest entry without a backing object
// is ErrConsistency.
func (g *Gallery) Open(ctx context.Context, tag string, c Candidate) (*storage.Object, error) {
	if err := g.checkEngine(); err != nil {
		return nil, err
	}

	key := g.ImageKey(tag, c.Orientation, c.File)
	obj, err := g.engine.GetObject(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, newError(ErrConsistency, "selected image file '%s' does not exist", c.File)
	}
	if err != nil {
		return nil, fmt.Errorf("get image %s: %w", key, err)
	}
	return obj, nil
}
