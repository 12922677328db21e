package worker

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gifforge/internal/command/root"
	"gifforge/internal/media"
	"gifforge/internal/metric"
	"gifforge/internal/pipeline"
	"gifforge/internal/queue"
	"gifforge/internal/signal"
	"gifforge/internal/storage"
	"gifforge/internal/util"
)

var (
	logger = log.WithFields(log.Fields{
		"app":     "worker",
		"version": "dev",
	})
)

func init() {
	root.Cmd.AddCommand(cmd)

	cmd.PersistentFlags().String("provider", "unknown", "Cloud provider")

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		logger.WithError(err).Fatal("flag binding failed")
	}
}

var cmd = &cobra.Command{
	Use:   "worker",
	Short: "Convert queued videos into GIFs",
	Long:  `GifForge Worker: consume conversion requests, sample and encode each source, store the artifact`,
	Run: func(cmd *cobra.Command, args []string) {
		logger.Info("starting worker")

		if _, err := media.EnsureWorkerReady(); err != nil {
			logger.WithError(err).Fatal("media toolchain not available")
		}

		cmpt := root.GetComponent(false, true, true, true)

		w := worker{
			channel:  cmpt.Channel,
			bucket:   cmpt.Bucket,
			metric:   cmpt.Metric,
			provider: viper.GetString("provider"),
		}

		w.Run()
	},
}

type worker struct {
	channel  queue.Channel
	bucket   storage.Bucket
	metric   metric.Client
	provider string
}

func (w *worker) Run() {
	ctx := signal.WatchInterrupt(context.Background(), 25*time.Second)

	logger.Info("worker started")

	for _, queueName := range []string{"gif.request", "gif.response"} {
		logger.Debugf("create queue '%s'", queueName)
		_ = w.channel.CreateQueue(queueName)
	}

	go w.metric.Ticker(context.Background(), 1*time.Second)

	hostname, _ := os.Hostname()

	counterMetric := &metric.CounterMetric{
		RowMetric: metric.RowMetric{Name: "gifforge_worker_tasks_total", Tags: metric.Tags{"hostname": hostname}},
		Counter:   0,
	}

	gaugeMetric := &metric.GaugeMetric{
		RowMetric: metric.RowMetric{Name: "gifforge_worker_tasks_count", Tags: metric.Tags{"hostname": hostname}},
		Gauge:     0,
	}

	errorsMetric := &metric.CounterMetric{
		RowMetric: metric.RowMetric{Name: "gifforge_worker_tasks_errors", Tags: metric.Tags{"hostname": hostname}},
		Counter:   0,
	}

	w.metric.Add(counterMetric)
	w.metric.Add(gaugeMetric)
	w.metric.Add(errorsMetric)

	var last struct {
		request  *queue.ConvertRequest
		delivery queue.Delivery
	}

	workerStarted := time.Now()
	noMessageCounter := 0

loop:
	for {
		select {
		case <-ctx.Done():
			// Requeue last request if shutdown signal is received
			if last.request != nil {
				if err := last.delivery.Nack(true); err != nil {
					logger.WithError(err).Error("unable to requeue last request")
					break loop
				}

				logger.WithFields(log.Fields{
					"uid": last.request.UID,
				}).Info("requeue last request (#1)")
			}

			break loop
		default:
			if noMessageCounter >= 3 {
				logger.Infof("no messages after %d retry, shutdown", noMessageCounter)
				break loop
			}

			var req queue.ConvertRequest
			ok, msg, err := w.channel.Consume("gif.request", &req)

			if err != nil {
				logger.WithError(err).Error("unable to consume gif.request")
				time.Sleep(5 * time.Second)
				continue
			}

			if !ok {
				noMessageCounter++
				gaugeMetric.Gauge = 0
				time.Sleep(5 * time.Second)
				continue
			}

			noMessageCounter = 0

			last.request = &req
			last.delivery = msg

			counterMetric.Counter++
			gaugeMetric.Gauge = 1

			taskStarted := time.Now()

			if err = w.HandleConvert(ctx, req); err != nil {
				if strings.Contains(err.Error(), "signal: killed") {
					if err := last.delivery.Nack(true); err != nil {
						logger.WithError(err).Error("unable to requeue last request")
						break loop
					}

					logger.WithFields(log.Fields{
						"uid": req.UID,
					}).Info("requeue last request (#2)")
					break loop
				}

				_ = msg.Nack(false)
				errorsMetric.Counter++
				logger.WithError(err).Error("error while handling conversion")

				if err := w.channel.Publish("gif.response", queue.ConvertResponse{
					UID:    req.UID,
					Source: req.Source,
					Error:  err.Error(),
				}); err != nil {
					logger.WithError(err).Error("unable to publish failure in gif.response")
				}

				continue
			}

			_ = msg.Ack()

			last.request = nil
			last.delivery = nil

			durationMetric := &metric.DurationMetric{
				RowMetric: metric.RowMetric{Name: "gifforge_worker_tasks_duration", Tags: metric.Tags{"provider": w.provider, "hostname": hostname, "uid": req.UID}},
				Duration:  time.Since(taskStarted),
			}
			w.metric.Send(durationMetric.Metric())
		}
	}

	logger.Info("worker stopped")

	durationMetric := &metric.DurationMetric{
		RowMetric: metric.RowMetric{Name: "gifforge_worker_duration", Tags: metric.Tags{"provider": w.provider, "hostname": hostname}},
		Duration:  time.Since(workerStarted),
	}
	w.metric.Send(durationMetric.Metric())
}

func (w *worker) HandleConvert(ctx context.Context, req queue.ConvertRequest) error {
	logger.WithFields(log.Fields{
		"uid":    req.UID,
		"source": req.Source,
		"width":  req.Width,
		"rate":   req.Rate,
	}).Info("receive conversion request")

	started := time.Now()

	res, err := convert(ctx, req, w.bucket)

	if err != nil {
		return errors.Wrapf(err, "error while converting '%s'", req.UID)
	}

	outputKey := req.UID + "/converted.gif"

	if err = util.UploadBytes(w.bucket, outputKey, res.Data); err != nil {
		return errors.Wrap(err, "artifact storage")
	}

	if err = w.channel.Publish("gif.response", queue.ConvertResponse{
		UID:      req.UID,
		Source:   req.Source,
		Output:   outputKey,
		Size:     res.Size,
		Frames:   res.Frames,
		Duration: time.Since(started).String(),
	}); err != nil {
		return errors.Wrap(err, "unable to publish in gif.response")
	}

	logger.WithFields(log.Fields{
		"uid":     req.UID,
		"output":  outputKey,
		"size_mb": res.SizeMB(),
		"frames":  res.Frames,
	}).Info("send conversion response")

	return nil
}

func convert(ctx context.Context, req queue.ConvertRequest, bucket storage.Bucket) (*pipeline.Result, error) {
	workDir, err := ioutil.TempDir(os.TempDir(), "convert")

	if err != nil {
		return nil, errors.Wrap(err, "unable to create temporary working directory")
	}

	defer os.RemoveAll(workDir)

	inputPath := workDir + "/" + path.Base(req.Source)

	if err := util.Download(bucket, req.Source, inputPath); err != nil {
		return nil, errors.Wrap(err, "unable to get source file")
	}

	converter := pipeline.NewConverter()
	converter.LogWriter = logger.WriterLevel(log.DebugLevel)
	converter.OnProgress = func(phase pipeline.Phase, fraction float64) {
		logger.WithFields(log.Fields{
			"uid":      req.UID,
			"phase":    phase,
			"progress": fmt.Sprintf("%05.2f%%", fraction*100),
		}).Debug("converting")
	}

	return converter.Convert(ctx, pipeline.Spec{
		Input:     inputPath,
		Width:     req.Width,
		Rate:      req.Rate,
		Loop:      req.Loop,
		MaxFrames: req.MaxFrames,
	})
}
