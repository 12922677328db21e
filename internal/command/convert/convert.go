package convert

import (
	"context"
	"fmt"
	"io/ioutil"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gifforge/internal/command/root"
	"gifforge/internal/pipeline"
	"gifforge/internal/signal"
)

var (
	logger = log.WithFields(log.Fields{
		"app": "convert",
	})
)

func init() {
	root.Cmd.AddCommand(cmd)

	cmd.Flags().String("input", "", "Source video file")
	cmd.Flags().String("output", "converted.gif", "Output GIF file")
	cmd.Flags().Int("width", 480, "Target width in pixels")
	cmd.Flags().Float64("rate", 10, "Sample rate in frames per second (suggested 1-24)")
	cmd.Flags().Bool("loop", true, "Loop the animation forever")
	cmd.Flags().Int("max-frames", pipeline.DefaultMaxFrames, "Frame cap per conversion")
}

var cmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a local video into an animated GIF",
	Long:  `GifForge Convert: sample a local video file and encode the frames into an animated GIF`,
	Run: func(cmd *cobra.Command, args []string) {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		width, _ := cmd.Flags().GetInt("width")
		rate, _ := cmd.Flags().GetFloat64("rate")
		loop, _ := cmd.Flags().GetBool("loop")
		maxFrames, _ := cmd.Flags().GetInt("max-frames")

		if input == "" {
			logger.Fatal("no input file given")
		}

		ctx := signal.WatchInterrupt(context.Background(), 10*time.Second)

		converter := pipeline.NewConverter()
		converter.LogWriter = logger.WriterLevel(log.DebugLevel)
		converter.OnProgress = func(phase pipeline.Phase, fraction float64) {
			logger.WithFields(log.Fields{
				"phase":    phase,
				"progress": fmt.Sprintf("%05.2f%%", fraction*100),
			}).Debug("converting")
		}

		started := time.Now()

		res, err := converter.Convert(ctx, pipeline.Spec{
			Input:     input,
			Width:     width,
			Rate:      rate,
			Loop:      loop,
			MaxFrames: maxFrames,
		})

		if err != nil {
			logger.WithError(err).Fatal("conversion failed")
		}

		if err := ioutil.WriteFile(output, res.Data, 0644); err != nil {
			logger.WithError(err).Fatalf("unable to write '%s'", output)
		}

		logger.WithFields(log.Fields{
			"output":   output,
			"size_mb":  res.SizeMB(),
			"frames":   res.Frames,
			"width":    res.Width,
			"height":   res.Height,
			"duration": time.Since(started).String(),
		}).Info("gif written")
	},
}
