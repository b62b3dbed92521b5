package transition

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Library resolves transition kinds to assets. Assets are read from the
// user directory first and from the bundled set otherwise.
type Library struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	bundled fs.FS
	dir     string

	assets map[Kind]Asset
	errs   map[Kind]error
}

// NewLibrary creates a library over bundled (usually BundledAssets()) and
// the user directory dir, which may be empty or missing.
func NewLibrary(bundled fs.FS, dir string, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		logger:  logger,
		bundled: bundled,
		dir:     dir,
		assets:  make(map[Kind]Asset),
		errs:    make(map[Kind]error),
	}
}

// Dir returns the user asset directory.
func (l *Library) Dir() string {
	return l.dir
}

// Load (re)reads every asset. Failures are recorded per kind and surface
// from Lookup; Load itself only fails if nothing could be loaded.
func (l *Library) Load() error {
	assets := make(map[Kind]Asset)
	errs := make(map[Kind]error)

	for k := range kindNames {
		if !k.Animated() {
			continue
		}
		a, err := l.load(k)
		if err != nil {
			errs[k] = err
			l.logger.Warn("transition asset unavailable", "transition", k.String(), "error", err)
			continue
		}
		assets[k] = a
	}

	l.mu.Lock()
	l.assets = assets
	l.errs = errs
	l.mu.Unlock()

	if len(assets) == 0 && len(errs) > 0 {
		return errors.New("no transition assets could be loaded")
	}
	l.logger.Debug("loaded transition assets", "count", len(assets))
	return nil
}

func (l *Library) load(k Kind) (Asset, error) {
	name := k.String() + ".toml"

	if l.dir != "" {
		path := filepath.Join(l.dir, name)
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			a, perr := ParseAsset(data)
			if perr == nil {
				a.Source = path
				return a, nil
			}
			l.logger.Warn("invalid user transition asset, trying bundled", "path", path, "error", perr)
		case !errors.Is(err, fs.ErrNotExist):
			l.logger.Warn("failed to read user transition asset", "path", path, "error", err)
		}
	}

	if l.bundled == nil {
		return Asset{}, &TransitionAssetError{Kind: k, Cause: fs.ErrNotExist}
	}
	data, err := fs.ReadFile(l.bundled, name)
	if err != nil {
		return Asset{}, &TransitionAssetError{Kind: k, Path: name, Cause: err}
	}
	a, err := ParseAsset(data)
	if err != nil {
		return Asset{}, &TransitionAssetError{Kind: k, Path: name, Cause: err}
	}
	a.Source = "bundled:" + name
	return a, nil
}

// Lookup returns the asset for k. None always resolves to the zero Asset.
// Missing or invalid assets yield a *TransitionAssetError.
func (l *Library) Lookup(k Kind) (Asset, error) {
	if !k.Animated() {
		return Asset{}, nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	if a, ok := l.assets[k]; ok {
		return a, nil
	}
	if err, ok := l.errs[k]; ok {
		var tae *TransitionAssetError
		if errors.As(err, &tae) {
			return Asset{}, tae
		}
		return Asset{}, &TransitionAssetError{Kind: k, Cause: err}
	}
	return Asset{}, &TransitionAssetError{Kind: k}
}

// Entry is a listing row for one transition.
type Entry struct {
	Kind  Kind
	Asset Asset
	Err   error
}

// Entries lists every animated transition with its asset or load error,
// sorted by name.
func (l *Library) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for k := range kindNames {
		if !k.Animated() {
			continue
		}
		e := Entry{Kind: k}
		if a, ok := l.assets[k]; ok {
			e.Asset = a
		} else {
			e.Err = l.errs[k]
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Kind.String() < out[j].Kind.String()
	})
	return out
}
