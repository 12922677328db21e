package watcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gifforge/internal/command/root"
	"gifforge/internal/database"
	"gifforge/internal/queue"
	"gifforge/internal/signal"
	"gifforge/internal/storage"
)

func init() {
	root.Cmd.AddCommand(cmd)
}

var cmd = &cobra.Command{
	Use:   "watcher",
	Short: "Track conversion results",
	Long:  `GifForge Watcher: consume conversion responses and keep per-job status records`,
	Run: func(cmd *cobra.Command, args []string) {
		log.Info("starting watcher")

		cmpt := root.GetComponent(true, true, true, false)

		w := watcher{
			db:      cmpt.DB,
			channel: cmpt.Channel,
			bucket:  cmpt.Bucket,
		}

		w.Run()
	},
}

// JobStatus is the persisted record per conversion, keyed "<uid>.status".
type JobStatus struct {
	UID       string `json:"uid"`
	State     string `json:"state"`
	Output    string `json:"output,omitempty"`
	Size      int64  `json:"size,omitempty"`
	Frames    int    `json:"frames,omitempty"`
	Error     string `json:"error,omitempty"`
	UpdatedAt string `json:"updatedAt"`
}

type watcher struct {
	db      database.Database
	channel queue.Channel
	bucket  storage.Bucket
}

func (w *watcher) Run() {
	ctx := signal.WatchInterrupt(context.Background(), 10*time.Second)

	for _, queueName := range []string{"gif.request", "gif.response"} {
		log.Debugf("create queue '%s'", queueName)
		_ = w.channel.CreateQueue(queueName)
	}

	log.Info("watcher started")

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
			var resp queue.ConvertResponse
			ok, msg, err := w.channel.Consume("gif.response", &resp)

			if err != nil {
				log.WithError(err).Error("unable to consume gif.response")
				time.Sleep(5 * time.Second)
				continue
			}

			if !ok {
				time.Sleep(5 * time.Second)
				continue
			}

			if err := w.HandleResponse(resp); err != nil {
				_ = msg.Nack(false)
				log.WithError(err).Error("error while handling response")
				continue
			}

			_ = msg.Ack()
		}
	}

	log.Info("watcher ended")
}

func (w *watcher) HandleResponse(resp queue.ConvertResponse) error {
	log.WithFields(log.Fields{
		"uid":    resp.UID,
		"output": resp.Output,
		"error":  resp.Error,
	}).Info("receive conversion response")

	status := JobStatus{
		UID:       resp.UID,
		State:     "done",
		Output:    resp.Output,
		Size:      resp.Size,
		Frames:    resp.Frames,
		Error:     resp.Error,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	if resp.Error != "" {
		status.State = "failed"
	}

	data, err := json.Marshal(status)

	if err != nil {
		return errors.Wrapf(err, "unable to marshal '%s' status", resp.UID)
	}

	if err = w.db.Set(resp.UID+".status", string(data), 24*time.Hour); err != nil {
		return errors.Wrapf(err, "unable to store status for '%s'", resp.UID)
	}

	// the uploaded source is no longer needed once the job finished; failed
	// jobs keep theirs around for inspection
	if status.State == "done" && resp.Source != "" {
		if err = w.bucket.Delete(resp.Source); err != nil {
			return errors.Wrapf(err, "unable to delete source '%s'", resp.Source)
		}

		log.WithFields(log.Fields{
			"uid":    resp.UID,
			"source": resp.Source,
		}).Info("source file deleted")
	}

	return nil
}
