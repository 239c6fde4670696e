package watch

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/penwyp/ivt-split/internal/data/scanner"
	"github.com/penwyp/ivt-split/internal/util"
)

// FileEvent is a change to a candidate report file
type FileEvent struct {
	Path      string
	Operation fsnotify.Op
}

// Touched reports whether the event means the file has new content
func (e FileEvent) Touched() bool {
	return e.Operation.Has(fsnotify.Create) || e.Operation.Has(fsnotify.Write)
}

// FileWatcher watches one directory, not its subdirectories, and forwards
// events for report files
type FileWatcher struct {
	watcher *fsnotify.Watcher
	events  chan FileEvent
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewFileWatcher(dir string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	fw := &FileWatcher{
		watcher: watcher,
		events:  make(chan FileEvent, 100),
		done:    make(chan struct{}),
	}

	// Start event processing
	fw.wg.Add(1)
	go fw.processEvents()

	return fw, nil
}

func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()
	defer close(fw.events)

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !scanner.IsCandidate(event.Name) {
				continue
			}
			select {
			case fw.events <- FileEvent{Path: event.Name, Operation: event.Op}:
			case <-fw.done:
				return
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// Log error but continue running
			util.LogError("File monitoring error: " + err.Error())

		case <-fw.done:
			return
		}
	}
}

// Events is closed after Close
func (fw *FileWatcher) Events() <-chan FileEvent {
	return fw.events
}

// Close stops watching and waits for the event goroutine to exit
func (fw *FileWatcher) Close() error {
	var err error
	fw.once.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
		fw.wg.Wait()
	})
	return err
}
