package autoscaler

import (
	"context"
	"fmt"
	"time"

	rabbithole "github.com/michaelklishin/rabbit-hole/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gifforge/internal/cloud"
	"gifforge/internal/command/root"
	"gifforge/internal/metric"
	"gifforge/internal/signal"
)

func init() {
	root.Cmd.AddCommand(cmd)

	cmd.PersistentFlags().Int("max-instances", 5, "Maximum number of instances")

	cmd.PersistentFlags().String("rabbitmq-protocol", "http", "RabbitMQ management protocol")
	cmd.PersistentFlags().String("rabbitmq-host", "rabbitmq:15672", "RabbitMQ management host")
	cmd.PersistentFlags().String("rabbitmq-user", "guest", "RabbitMQ management user")
	cmd.PersistentFlags().String("rabbitmq-pass", "guest", "RabbitMQ management password")

	cmd.PersistentFlags().String("gcp-project", "", "GCP project")
	cmd.PersistentFlags().String("gcp-zone", "us-central1-a", "GCP zone")
	cmd.PersistentFlags().String("gcp-group", "gifforge-workers", "GCP group")
	cmd.PersistentFlags().String("gcp-prefix", "gifforge-worker-", "GCP instance name prefix")
	cmd.PersistentFlags().String("gcp-machine-type", "n1-standard-1", "GCP machine type")
	cmd.PersistentFlags().String("gcp-image", "projects/cos-cloud/global/images/family/cos-stable", "GCP boot image")
	cmd.PersistentFlags().Bool("gcp-preemptible", true, "GCP preemptible instance")
	cmd.PersistentFlags().String("worker-image", "", "Worker container image")

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		log.WithError(err).Fatal("flag binding failed")
	}
}

var cmd = &cobra.Command{
	Use:   "autoscaler",
	Short: "Scale number of worker instances",
	Long:  `GifForge AutoScaler: scale number of worker instances by watching the conversion request queue`,
	Run: func(cmd *cobra.Command, args []string) {
		log.Info("starting autoscaler")

		cmpt := root.GetComponent(false, false, false, true)

		as := autoscaler{
			metric: cmpt.Metric,
		}

		as.Run()
	},
}

type autoscaler struct {
	metric metric.Client
}

// observeInstances registers the gauge reported on every metric tick, the
// poll loop keeps it in sync with the instance group size.
func (as *autoscaler) observeInstances(group string) *metric.GaugeMetric {
	instancesMetric := &metric.GaugeMetric{
		RowMetric: metric.RowMetric{Name: "gifforge_autoscaler_instances", Tags: metric.Tags{"group": group}},
		Gauge:     0,
	}

	as.metric.Add(instancesMetric)

	return instancesMetric
}

// workerEnv is the environment handed to spawned worker containers, mirroring
// the viper env names the root command reads.
func workerEnv() map[string]string {
	return map[string]string{
		"AMQP":            viper.GetString("amqp"),
		"REDIS":           viper.GetString("redis"),
		"REDIS_PASSWORD":  viper.GetString("redis-password"),
		"STORAGE_BACKEND": viper.GetString("storage-backend"),
		"AWS_BUCKET":      viper.GetString("aws-bucket"),
		"AWS_REGION":      viper.GetString("aws-region"),
		"AWS_ENDPOINT":    viper.GetString("aws-endpoint"),
		"AWS_ID":          viper.GetString("aws-id"),
		"AWS_SECRET":      viper.GetString("aws-secret"),
		"GCS_BUCKET":      viper.GetString("gcs-bucket"),
		"INFLUXDB":        viper.GetString("influxdb"),
		"INFLUXDB_TOKEN":  viper.GetString("influxdb-token"),
		"INFLUXDB_BUCKET": viper.GetString("influxdb-bucket"),
		"INFLUXDB_ORG":    viper.GetString("influxdb-org"),
		"PROVIDER":        "google-vm",
	}
}

func (as *autoscaler) Run() {
	ctx := signal.WatchInterrupt(context.Background(), 10*time.Second)

	gcpProject := viper.GetString("gcp-project")
	gcpZone := viper.GetString("gcp-zone")
	gcpGroup := viper.GetString("gcp-group")
	provider, err := cloud.NewGCP(ctx, gcpProject, gcpZone, gcpGroup, viper.GetString("worker-image"), workerEnv())

	if err != nil {
		log.WithError(err).Fatal("cloud provider")
	}

	log.WithFields(log.Fields{
		"project": gcpProject,
		"zone":    gcpZone,
		"group":   gcpGroup,
	}).Info("connected to GCP")

	rabbitMQURL := fmt.Sprintf("%s://%s", viper.GetString("rabbitmq-protocol"), viper.GetString("rabbitmq-host"))
	rmqc, err := rabbithole.NewClient(rabbitMQURL, viper.GetString("rabbitmq-user"), viper.GetString("rabbitmq-pass"))

	if err != nil {
		log.WithError(err).Fatal("rabbitmq admin client")
	}

	log.Infof("connected to RabbitMQ admin '%s'", rabbitMQURL)

	maxInstances := viper.GetInt("max-instances")
	log.Infof("maximum number of instances: %d", maxInstances)

	go as.metric.Ticker(ctx, 10*time.Second)

	instancesMetric := as.observeInstances(gcpGroup)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	log.Info("autoscaler started")

loop:
	for {
		go func() {
			queueInfo, err := rmqc.GetQueue("/", "gif.request")

			if err != nil {
				log.WithError(err).Error("get queue info")
				return
			}

			count, err := provider.Count(ctx)

			if err != nil {
				log.WithError(err).Error("count instance")
				return
			}

			instancesMetric.Gauge = float64(count)

			log.WithFields(log.Fields{
				"instances": count,
				"ready":     queueInfo.MessagesReady,
				"unacked":   queueInfo.MessagesUnacknowledged,
				"total":     queueInfo.Messages,
			}).Debug("count")

			if queueInfo.MessagesReady > 0 {
				if count < maxInstances {
					nbInstances := maxInstances

					if queueInfo.MessagesReady < maxInstances {
						nbInstances = queueInfo.MessagesReady
					}

					if nbInstances != count {
						for i := 0; i < nbInstances-count; i++ {
							_, err = provider.AddInstance(ctx, viper.GetString("gcp-prefix"), viper.GetString("gcp-machine-type"), viper.GetString("gcp-image"), viper.GetBool("gcp-preemptible"))

							if err != nil {
								log.WithError(err).Fatal("increase instance number")
							}
						}

						log.WithFields(log.Fields{
							"previous": count,
							"current":  nbInstances,
						}).Info("increase number of instances")
					}
				}
			} else if queueInfo.Messages == 0 {
				if count > 0 {
					if err = provider.DeleteAll(ctx); err != nil {
						log.WithError(err).Fatal("delete all instances")
					}

					log.WithFields(log.Fields{
						"previous": count,
						"current":  0,
					}).Info("decrease number of instances")
				}
			}
		}()

		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			continue
		}
	}

	log.Info("autoscaler stopped")
}
