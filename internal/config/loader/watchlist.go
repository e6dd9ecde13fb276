// Package loader provides file-backed configuration with hot reload.
package loader

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tradedesk/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WatchlistSnapshot is the read-only view of the broadcast symbol set.
type WatchlistSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Symbols  []string
}

// ChangeListener is invoked whenever the watchlist file changes on disk.
type ChangeListener func(WatchlistSnapshot)

type fileConfig struct {
	Symbols []string `mapstructure:"symbols"`
}

// WatchlistLoader loads the broadcast symbol list from a YAML file and
// follows filesystem events so edits take effect without a restart.
type WatchlistLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  WatchlistSnapshot
	listeners []ChangeListener
}

// NewWatchlistLoader reads the file and starts watching it.
func NewWatchlistLoader(path string) (*WatchlistLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("watchlist loader requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read watchlist failed: %w", err)
	}
	l := &WatchlistLoader{path: path, v: v}
	if err := l.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := l.reload(); err != nil {
			logger.Errorf("watchlist reload failed (%s): %v", evt.Name, err)
			return
		}
		l.notify()
	})
	v.WatchConfig()
	return l, nil
}

// Snapshot returns the current symbol set.
func (l *WatchlistLoader) Snapshot() WatchlistSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Subscribe registers a listener and immediately delivers the current snapshot.
func (l *WatchlistLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("watchlist listener panic: %v", r)
			}
		}()
		fn(snap)
	}()
}

func (l *WatchlistLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("watchlist listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func (l *WatchlistLoader) reload() error {
	var fileCfg fileConfig
	if err := l.v.Unmarshal(&fileCfg); err != nil {
		return fmt.Errorf("parse watchlist failed: %w", err)
	}
	symbols := normalizeSymbols(fileCfg.Symbols)
	if len(symbols) == 0 {
		return fmt.Errorf("watchlist %s contains no symbols", l.path)
	}
	l.mu.Lock()
	l.snapshot = WatchlistSnapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Symbols:  symbols,
	}
	l.mu.Unlock()
	logger.Infof("watchlist reloaded %d symbols from %s", len(symbols), filepath.Base(l.path))
	return nil
}

func normalizeSymbols(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, sym := range in {
		s := strings.ToUpper(strings.TrimSpace(sym))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func cloneSnapshot(src WatchlistSnapshot) WatchlistSnapshot {
	dst := WatchlistSnapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Symbols:  make([]string, len(src.Symbols)),
	}
	copy(dst.Symbols, src.Symbols)
	return dst
}
