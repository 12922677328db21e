package submit

import (
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gifforge/internal/command/root"
	"gifforge/internal/media"
	"gifforge/internal/pipeline"
	"gifforge/internal/queue"
	"gifforge/internal/util"
)

var (
	logger = log.WithFields(log.Fields{
		"app": "submit",
	})
)

func init() {
	root.Cmd.AddCommand(cmd)

	cmd.Flags().String("input", "", "Source video file")
	cmd.Flags().Int("width", 480, "Target width in pixels")
	cmd.Flags().Float64("rate", 10, "Sample rate in frames per second")
	cmd.Flags().Bool("loop", true, "Loop the animation forever")
	cmd.Flags().Int("max-frames", pipeline.DefaultMaxFrames, "Frame cap per conversion")
}

var cmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a video to the conversion pipeline",
	Long:  `GifForge Submit: upload a source video and enqueue a conversion request for the workers`,
	Run: func(cmd *cobra.Command, args []string) {
		input, _ := cmd.Flags().GetString("input")
		width, _ := cmd.Flags().GetInt("width")
		rate, _ := cmd.Flags().GetFloat64("rate")
		loop, _ := cmd.Flags().GetBool("loop")
		maxFrames, _ := cmd.Flags().GetInt("max-frames")

		if input == "" {
			logger.Fatal("no input file given")
		}

		if !media.DeclaredVideo(input) {
			logger.Fatalf("'%s' does not look like a video file", input)
		}

		cmpt := root.GetComponent(false, true, true, false)

		uid := util.Random(8)
		key := uid + "/source" + strings.ToLower(filepath.Ext(input))

		if err := util.Upload(cmpt.Bucket, key, input); err != nil {
			logger.WithError(err).Fatalf("unable to upload '%s'", input)
		}

		if err := cmpt.Channel.CreateQueue("gif.request"); err != nil {
			logger.WithError(err).Fatal("unable to create queue 'gif.request'")
		}

		if err := cmpt.Channel.Publish("gif.request", queue.ConvertRequest{
			UID:       uid,
			Source:    key,
			Width:     width,
			Rate:      rate,
			Loop:      loop,
			MaxFrames: maxFrames,
		}); err != nil {
			logger.WithError(err).Fatal("unable to publish in gif.request")
		}

		logger.WithFields(log.Fields{
			"uid":    uid,
			"source": key,
		}).Info("conversion request submitted")
	},
}
