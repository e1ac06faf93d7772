package core

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleverdata/photo-uploader/internal/api"
	"github.com/cleverdata/photo-uploader/internal/config"
	"github.com/cleverdata/photo-uploader/internal/db"
	"github.com/fsnotify/fsnotify"
)

var DebugMode bool

// ErrUnsupportedType marks files skipped by the extension filter.
var ErrUnsupportedType = errors.New("unsupported format")

var supportedTypes = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".heic": true,
}

type Logger interface {
	Info(v ...interface{}) error
	Infof(format string, v ...interface{}) error
	Error(v ...interface{}) error
	Errorf(format string, v ...interface{}) error
	Warning(v ...interface{}) error
	Warningf(format string, v ...interface{}) error
}

func debugLog(logger Logger, format string, v ...interface{}) {
	if DebugMode && logger != nil {
		logger.Infof("[DEBUG] "+format, v...)
	}
}

// Uploader is the remote side of the pipeline.
type Uploader interface {
	RequestSignedUpload(ctx context.Context, filename string) (api.SignedUpload, error)
	UploadImage(ctx context.Context, uploadURL, filePath string) error
	RegisterPhoto(ctx context.Context, payload api.PhotoPayload) error
}

// History is the optional upload ledger.
type History interface {
	Lookup(fileName, albumSlug string) (db.Record, bool, error)
	MarkUploaded(fileName, albumSlug, imageID string) error
	MarkRegistered(fileName, albumSlug, imageID string) error
	IncrementError(fileName, albumSlug string) error
}

// Dispatcher runs the upload pipeline for files created in the watch folder,
// one at a time.
type Dispatcher struct {
	cfg     config.Config
	client  Uploader
	history History
	logger  Logger
	watcher *fsnotify.Watcher
}

// NewDispatcher builds a dispatcher. history may be nil.
func NewDispatcher(cfg config.Config, client Uploader, history History, logger Logger) *Dispatcher {
	return &Dispatcher{cfg: cfg, client: client, history: history, logger: logger}
}

// Subscribe registers for events on the watch folder. Watch calls it when
// the caller has not.
func (d *Dispatcher) Subscribe() error {
	if d.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(d.cfg.WatchFolder); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", d.cfg.WatchFolder, err)
	}
	d.watcher = watcher
	return nil
}

// Watch handles create events on the watch folder until ctx is cancelled,
// then drops the subscription. Files already in the folder are not scanned.
func (d *Dispatcher) Watch(ctx context.Context) error {
	if err := d.Subscribe(); err != nil {
		return err
	}
	watcher := d.watcher
	defer func() {
		watcher.Close()
		d.watcher = nil
	}()
	d.logger.Infof("Watching %s for new files", d.cfg.WatchFolder)

	for {
		select {
		case e, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !e.Has(fsnotify.Create) {
				continue
			}
			debugLog(d.logger, "FSNOTIFY event (%v) for %s", e.Op, filepath.Base(e.Name))
			// Errors are logged inside; the loop always moves on.
			d.HandleCreate(ctx, e.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Warningf("Watcher error: %v", err)

		case <-ctx.Done():
			d.logger.Info("Stopping watcher...")
			return nil
		}
	}
}

// HandleCreate processes a single created path: wait for it to settle, filter
// by extension, upload and archive. Failures are logged and returned; the
// file is left where it is.
func (d *Dispatcher) HandleCreate(ctx context.Context, path string) error {
	name := filepath.Base(path)

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		debugLog(d.logger, "Ignoring directory %s", name)
		return nil
	}

	if err := WaitUntilStable(ctx, path, d.cfg.StabilityInterval, d.cfg.StabilityTimeout, d.logger); err != nil {
		d.logger.Errorf("Upload failed for %s: %v", name, err)
		return err
	}

	if !supportedTypes[strings.ToLower(filepath.Ext(path))] {
		d.logger.Warningf("Skipping %s: unsupported format", name)
		return fmt.Errorf("%s: %w", name, ErrUnsupportedType)
	}

	if err := d.Upload(ctx, path); err != nil {
		d.logger.Errorf("Upload failed for %s: %v", name, err)
		d.recordFailure(name)
		return err
	}

	dest, err := MoveToDone(path, d.cfg.UploadedFolder)
	if err != nil {
		d.logger.Errorf("%s was uploaded and registered but NOT archived: %v. It will be registered again if it is processed again.", name, err)
		return err
	}
	d.logger.Infof("Moved %s to %s", name, dest)
	return nil
}

// Upload runs signed-upload, binary upload and metadata registration in order.
// A metadata failure can leave an unregistered image behind on the remote.
func (d *Dispatcher) Upload(ctx context.Context, path string) error {
	name := filepath.Base(path)
	d.logger.Infof("Processing %s", name)
	d.checkHistory(name)

	signed, err := d.client.RequestSignedUpload(ctx, name)
	if err != nil {
		return err
	}
	d.logger.Info("Obtained signed upload URL")

	if err := d.client.UploadImage(ctx, signed.UploadURL, path); err != nil {
		return err
	}
	debugLog(d.logger, "Image bytes stored as %s", signed.ImageID)
	if d.history != nil {
		if err := d.history.MarkUploaded(name, d.cfg.AlbumSlug, signed.ImageID); err != nil {
			d.logger.Warningf("History update failed for %s: %v", name, err)
		}
	}

	payload := api.PhotoPayload{
		AlbumSlug:        d.cfg.AlbumSlug,
		ImageID:          signed.ImageID,
		FilenameOriginal: name,
		Tags:             []string{},
	}
	if d.cfg.AltText != "" {
		alt := d.cfg.AltText
		payload.Alt = &alt
	}
	if w, h, err := imageDimensions(path); err == nil {
		payload.Width, payload.Height = w, h
	} else {
		debugLog(d.logger, "No dimensions for %s: %v", name, err)
	}

	if err := d.client.RegisterPhoto(ctx, payload); err != nil {
		return err
	}
	if d.history != nil {
		if err := d.history.MarkRegistered(name, d.cfg.AlbumSlug, signed.ImageID); err != nil {
			d.logger.Warningf("History update failed for %s: %v", name, err)
		}
	}

	d.logger.Infof("Upload completed for %s", name)
	return nil
}

func (d *Dispatcher) checkHistory(name string) {
	if d.history == nil {
		return
	}
	rec, found, err := d.history.Lookup(name, d.cfg.AlbumSlug)
	if err != nil {
		d.logger.Warningf("History lookup failed for %s: %v", name, err)
		return
	}
	if !found {
		return
	}
	if rec.Status == db.StatusRegistered {
		d.logger.Warningf("%s is already registered in album %s as %s; uploading it again will create a duplicate", name, rec.AlbumSlug, rec.ImageID)
	} else if rec.ErrorCount > 0 {
		d.logger.Infof("%s previously failed %d time(s)", name, rec.ErrorCount)
	}
	if rec.Status == db.StatusUploaded {
		d.logger.Warningf("%s has an unregistered remote image %s from an earlier attempt", name, rec.ImageID)
	}
}

func (d *Dispatcher) recordFailure(name string) {
	if d.history == nil {
		return
	}
	if err := d.history.IncrementError(name, d.cfg.AlbumSlug); err != nil {
		d.logger.Warningf("History update failed for %s: %v", name, err)
	}
}

// imageDimensions reads the pixel size from the image header. Only formats
// with a registered decoder are understood.
func imageDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
