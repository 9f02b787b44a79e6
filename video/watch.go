package video

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watch reports video files that appear under root until ctx is done. A file
// is handed to handle once it has seen no events for settle, so videos still
// being copied are not opened early. handle runs on the calling goroutine,
// keeping processing sequential.
func Watch(ctx context.Context, root string, settle time.Duration, handle func(path string)) error {
	if settle <= 0 {
		settle = time.Second / 10
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	pending := make(map[string]time.Time)
	if err := watchTree(watcher, root, pending); err != nil {
		return err
	}
	// Files present before the watch started are not new.
	for k := range pending {
		delete(pending, k)
	}
	log.Infof("Watching %s for new videos", root)

	tick := time.NewTicker(settle / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					delete(pending, ev.Name)
				}
				continue
			}
			fi, err := os.Stat(ev.Name)
			if err != nil {
				continue
			}
			if fi.IsDir() {
				if ev.Op&fsnotify.Create != 0 {
					if err := watchTree(watcher, ev.Name, pending); err != nil {
						log.Errorf("Error watching %s: %v", ev.Name, err)
					}
				}
				continue
			}
			if IsVideo(ev.Name) {
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("Error watching for videos: %v", err)

		case now := <-tick.C:
			var ready []string
			for path, last := range pending {
				if now.Sub(last) >= settle {
					ready = append(ready, path)
				}
			}
			sort.Strings(ready)
			for _, path := range ready {
				delete(pending, path)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				handle(path)
			}
		}
	}
}

// watchTree adds dir and its subdirectories to the watcher and marks videos
// already inside as pending, since they may have been created before the
// directory was watched.
func watchTree(watcher *fsnotify.Watcher, dir string, pending map[string]time.Time) error {
	return filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return watcher.Add(path)
		}
		if IsVideo(path) {
			pending[path] = time.Now()
		}
		return nil
	})
}
