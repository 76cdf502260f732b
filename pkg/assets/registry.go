// Package assets resolves asset identifiers to scene subtrees. Loads run on
// background goroutines and complete into Futures.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"fortio.org/log"
	"golang.org/x/sync/errgroup"

	"github.com/taigrr/rgbswitch/pkg/models"
	"github.com/taigrr/rgbswitch/pkg/scene"
)

var (
	// ErrUnknownAsset is returned for identifiers no source can resolve.
	ErrUnknownAsset = errors.New("unknown asset")
	// ErrUnsupportedFormat is returned for files with an unrecognised extension.
	ErrUnsupportedFormat = errors.New("unsupported asset format")
)

// BuiltinPrefix selects the procedural models compiled into the binary.
const BuiltinPrefix = "builtin:"

// Source loads one asset by identifier.
type Source interface {
	Load(ctx context.Context, id string) (*scene.Node, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, id string) (*scene.Node, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context, id string) (*scene.Node, error) { return f(ctx, id) }

// Builtin serves "builtin:switch" and "builtin:button01" to "builtin:button03".
type Builtin struct{}

// Load implements Source.
func (Builtin) Load(_ context.Context, id string) (*scene.Node, error) {
	name := strings.TrimPrefix(id, BuiltinPrefix)
	var (
		m   *models.Model
		err error
	)
	switch name {
	case "switch":
		m = models.SwitchModel()
	case "button01", "button02", "button03":
		m, err = models.ButtonModel(int(name[len(name)-1] - '0'))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	if err != nil {
		return nil, err
	}
	return scene.FromModel(m), nil
}

// FileSource loads .glb, .gltf and .stl files from a filesystem.
type FileSource struct {
	FS   fs.FS
	GLTF *models.GLTFLoader
	STL  *models.STLLoader
}

// NewFileSource returns a FileSource over fsys with default loaders.
func NewFileSource(fsys fs.FS) *FileSource {
	return &FileSource{FS: fsys, GLTF: models.NewGLTFLoader(), STL: models.NewSTLLoader()}
}

// Load implements Source. The identifier is a slash-separated path in FS.
func (s *FileSource) Load(ctx context.Context, id string) (*scene.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := fs.Stat(s.FS, id); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	var (
		m   *models.Model
		err error
	)
	switch strings.ToLower(path.Ext(id)) {
	case ".glb", ".gltf":
		m, err = s.GLTF.LoadFS(s.FS, id)
	case ".stl":
		m, err = s.STL.LoadFS(s.FS, id)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, id)
	}
	if err != nil {
		return nil, err
	}
	node := scene.FromModel(m)
	node.Name = strings.TrimSuffix(path.Base(id), path.Ext(id))
	return node, nil
}

// Registry routes identifiers to sources by prefix and runs loads
// asynchronously. Identifiers without a registered prefix go to the
// fallback source.
type Registry struct {
	mu       sync.RWMutex
	prefixes map[string]Source
	fallback Source
}

// NewRegistry returns a registry serving builtin assets and, when fsys is
// non-nil, files from fsys.
func NewRegistry(fsys fs.FS) *Registry {
	r := &Registry{prefixes: map[string]Source{BuiltinPrefix: Builtin{}}}
	if fsys != nil {
		r.fallback = NewFileSource(fsys)
	}
	return r
}

// Register routes identifiers starting with prefix to src.
func (r *Registry) Register(prefix string, src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[prefix] = src
}

func (r *Registry) source(id string) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	best := ""
	for p := range r.prefixes {
		if strings.HasPrefix(id, p) && len(p) > len(best) {
			best = p
		}
	}
	if best != "" {
		return r.prefixes[best]
	}
	return r.fallback
}

// LoadSync loads id on the calling goroutine.
func (r *Registry) LoadSync(ctx context.Context, id string) (*scene.Node, error) {
	src := r.source(id)
	if src == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	n, err := src.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	log.LogVf("Loaded asset %s", id)
	return n, nil
}

// Load starts loading id in the background.
func (r *Registry) Load(ctx context.Context, id string) *Future[*scene.Node] {
	return Go(ctx, func(ctx context.Context) (*scene.Node, error) {
		return r.LoadSync(ctx, id)
	})
}

// LoadAll loads every id concurrently and returns the nodes in order. The
// first failure cancels the remaining loads.
func (r *Registry) LoadAll(ctx context.Context, ids ...string) ([]*scene.Node, error) {
	out := make([]*scene.Node, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			n, err := r.LoadSync(ctx, id)
			if err != nil {
				return err
			}
			out[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
