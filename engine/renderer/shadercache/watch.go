package shadercache

import (
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/prism/engine/core"
)

// WatchDir flushes the compiled-pass pool whenever a file under dir changes,
// so edited user-shader fragments take effect without restarting the player.
// The flush happens on the render thread at the next generate, not in the
// watcher goroutine.
func (sc *ShaderCache) WatchDir(dir string) error {
	if sc.watcher != nil {
		return fmt.Errorf("shader watcher already running")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating shader watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	sc.watcher = w
	sc.watcherDone = make(chan struct{})

	go func() {
		for {
			select {
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					core.LogInfo("shader fragment %s changed, flushing pass cache", e.Name)
					sc.flushRequested.Store(true)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				core.LogWarn("shader watcher: %v", err)
			case <-sc.watcherDone:
				return
			}
		}
	}()

	return nil
}
