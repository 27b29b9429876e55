package cmd

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"studio/internal/build"
	"studio/internal/config"
)

// options collects the flag values. Only flags set on the command line
// override the loaded configuration.
type options struct {
	configPath      string
	address         string
	spectrumUDP     string
	deviceID        int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	micFile         string
	camera          string
	width           int
	height          int
	outputDir       string
	verbose         bool
	interactive     bool
}

// ParseArgs parses the process arguments into a configuration. A nil config
// with a nil error means cobra already handled the invocation (help or
// version) and there is nothing left to run.
func ParseArgs() (*config.Config, error) {
	return parseArgs(os.Args[1:])
}

func parseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	opts := &options{}
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err = opts.load(cmd)
			return err
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if cfg, err = opts.load(cmd); err != nil {
				return err
			}
			cfg.Command = "list"
			cfg.Interactive = opts.interactive
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false,
		"Pick a microphone and print the matching flags")
	rootCmd.AddCommand(listCmd)

	// Probe command
	probeCmd := &cobra.Command{
		Use:   "probe <file.avi>",
		Short: "Print the stream layout of a saved recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if cfg, err = opts.load(cmd); err != nil {
				return err
			}
			cfg.Command = "probe"
			cfg.ProbeFile = args[0]
			return nil
		},
	}
	rootCmd.AddCommand(probeCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "",
		"Path to a YAML config file (default: studio.yaml or config.yaml if present)")
	flags.StringVar(&opts.address, "addr", config.DefaultAddress,
		"Listen address of the control UI")
	flags.StringVar(&opts.spectrumUDP, "spectrum-udp", "",
		"Stream the microphone spectrum to this host:port over UDP")

	// Microphone Configuration
	flags.IntVarP(&opts.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.IntVarP(&opts.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to record (1=mono, 2=stereo)")
	flags.Float64VarP(&opts.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&opts.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	flags.BoolVarP(&opts.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	flags.StringVar(&opts.micFile, "mic-file", "",
		"Replay a WAV file as the microphone")

	// Camera and Surface Configuration
	flags.StringVar(&opts.camera, "camera", config.DefaultCamera,
		"Camera source: 'pattern' or the path of a still image")
	flags.IntVar(&opts.width, "width", config.DefaultWidth, "Drawing surface width")
	flags.IntVar(&opts.height, "height", config.DefaultHeight, "Drawing surface height")

	// Recording Configuration
	flags.StringVarP(&opts.outputDir, "output", "o", "",
		"Also save every recording into this directory")

	// Debug Configuration
	flags.BoolVarP(&opts.verbose, "verbose", "v", config.DefaultVerbosity,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// load reads the config file and applies the flags the user set.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Server.Address = o.address
	}
	if changed("spectrum-udp") {
		cfg.Server.SpectrumUDP = o.spectrumUDP
	}
	if changed("device") {
		cfg.Audio.InputDevice = o.deviceID
	}
	if changed("channels") {
		cfg.Audio.InputChannels = o.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = o.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = o.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = o.lowLatency
	}
	if changed("mic-file") {
		cfg.Audio.InputFile = o.micFile
	}
	if changed("camera") {
		cfg.Video.Camera = o.camera
	}
	if changed("width") {
		cfg.Video.Width = o.width
	}
	if changed("height") {
		cfg.Video.Height = o.height
	}
	if changed("output") {
		cfg.Recording.Save = strings.TrimSpace(o.outputDir) != ""
		cfg.Recording.OutputDir = o.outputDir
	}
	if o.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid flags")
	}
	return cfg, nil
}
