package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrObjectNotFound is returned by GetObject when no object is stored under
// the requested key.
var ErrObjectNotFound = errors.New("object not found")

// Listing is the result of a single ListObjects call. Keys and Prefixes are
// reported in the order the backend listed them.
type Listing struct {
	Keys     []string
	Prefixes []string
}

// Object is an open object payload together with the metadata needed to
// relay it over HTTP. Callers must close Body.
type Object struct {
	Key          string
	Body         io.ReadCloser
	Size         int64
	ETag         string
	LastModified time.Time

	ContentType        string
	ContentEncoding    string
	ContentLanguage    string
	ContentDisposition string
	CacheControl       string
}

// HTTPETag returns the ETag formatted as a quoted HTTP entity tag.
func (o *Object) HTTPETag() string {
	if o.ETag == "" {
		return ""
	}
	return fmt.Sprintf("\"%s\"", o.ETag)
}

// WriteHTTPMetadata copies the object's content metadata into h. Empty
// fields are left untouched.
func (o *Object) WriteHTTPMetadata(h http.Header) {
	set := func(key, value string) {
		if value != "" {
			h.Set(key, value)
		}
	}

	set("Content-Type", o.ContentType)
	set("Content-Encoding", o.ContentEncoding)
	set("Content-Language", o.ContentLanguage)
	set("Content-Disposition", o.ContentDisposition)
	set("Cache-Control", o.CacheControl)
}

// StorageEngine defines the read side of an object store laid out as
// slash-separated keys.
type StorageEngine interface {
	// ListObjects lists the keys under prefix. With delimiter "/" only the
	// direct children are returned, and deeper keys are rolled up into
	// Prefixes. An empty delimiter lists recursively.
	ListObjects(ctx context.Context, prefix string, delimiter string) (Listing, error)

	// GetObject opens the object stored under key. It returns
	// ErrObjectNotFound when the key does not exist.
	GetObject(ctx context.Context, key string) (*Object, error)
}

// WritableEngine is a StorageEngine that also accepts uploads.
type WritableEngine interface {
	StorageEngine

	// PutObject stores size bytes read from r under key.
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

func checkDelimiter(delimiter string) error {
	if delimiter != "" && delimiter != "/" {
		return fmt.Errorf("unsupported delimiter %q", delimiter)
	}
	return nil
}
