// Package main saves the first aligned annotation, depth and color frames as
// rgb_image.png and depth_image.pgm.
package main

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/imagedumper/capture"
	"go.viam.com/imagedumper/config"
	"go.viam.com/imagedumper/framesource"
	"go.viam.com/imagedumper/logging"
	"go.viam.com/imagedumper/ros"
	"go.viam.com/imagedumper/timesync"
)

var logger = logging.NewLogger("image_dumper")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,usage=JSON config file"`
	Bag        string `flag:"bag,usage=rosbag to replay"`
	Dir        string `flag:"dir,usage=directory to watch for frame files"`
	Out        string `flag:"out,usage=directory to write rgb_image.png and depth_image.pgm to"`
	Ledger     string `flag:"ledger,usage=sqlite file to record captures in"`
	LogFile    string `flag:"log-file,usage=also write logs to this rotated file"`
	Debug      bool   `flag:"debug,usage=log debug lines"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	cfg, err := loadConfig(argsParsed)
	if err != nil {
		return err
	}
	if cfg.Debug {
		logger.SetLevel(logging.DEBUG)
	}
	if cfg.LogFile != "" {
		fileAppender := logging.NewFileAppender(cfg.LogFile)
		defer utils.UncheckedErrorFunc(fileAppender.Close)
		logger.AddAppender(fileAppender)
	}
	return runDumper(ctx, cfg, logger)
}

// loadConfig reads the config file, if any, and lets flags override it.
func loadConfig(argsParsed Arguments) (*config.Config, error) {
	cfg := config.Default()
	if argsParsed.ConfigFile != "" {
		var err error
		if cfg, err = config.Read(argsParsed.ConfigFile); err != nil {
			return nil, err
		}
	}
	switch {
	case argsParsed.Bag != "" && argsParsed.Dir != "":
		return nil, errors.New("only one of --bag and --dir may be given")
	case argsParsed.Bag != "":
		cfg.Source = config.SourceConfig{Type: config.SourceTypeBag, Path: argsParsed.Bag}
	case argsParsed.Dir != "":
		cfg.Source = config.SourceConfig{Type: config.SourceTypeDir, Path: argsParsed.Dir}
	}
	if argsParsed.Out != "" {
		cfg.OutputDir = argsParsed.Out
	}
	if argsParsed.Ledger != "" {
		cfg.LedgerPath = argsParsed.Ledger
	}
	if argsParsed.LogFile != "" {
		cfg.LogFile = argsParsed.LogFile
	}
	if argsParsed.Debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newSource(cfg *config.Config, logger logging.Logger) framesource.Source {
	if cfg.Source.Type == config.SourceTypeDir {
		return framesource.NewDirSource(cfg.Source.Path, logger.Sublogger("dir"))
	}
	return framesource.NewBagSource(cfg.Source.Path, cfg.Topics, logger.Sublogger("bag"))
}

// runDumper wires source, synchronizer and capture session together and runs until one
// capture is saved.
func runDumper(ctx context.Context, cfg *config.Config, logger logging.Logger) (err error) {
	sessionCfg, err := cfg.SessionConfig()
	if err != nil {
		return err
	}

	var opts []capture.SessionOption
	if cfg.LedgerPath != "" {
		var recorder *capture.SQLiteRecorder
		recorder, err = capture.NewSQLiteRecorder(ctx, cfg.LedgerPath)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, recorder.Close())
		}()
		opts = append(opts, capture.WithRecorder(recorder))
	}

	sink := capture.NewFileSink(cfg.OutputDir, logger.Sublogger("sink"))
	session, err := capture.NewSession(sessionCfg, ros.Decoder{}, sink, logger.Sublogger("session"), opts...)
	if err != nil {
		return err
	}
	synchronizer, err := timesync.NewSynchronizer(cfg.SyncConfig(), session.MatchFunc(ctx))
	if err != nil {
		return err
	}

	inbox := make(chan timesync.Frame, cfg.InboxSize)
	loop, err := capture.NewLoop(inbox, synchronizer, session, cfg.PollInterval, nil, logger)
	if err != nil {
		return err
	}

	source := newSource(cfg, logger)
	if err := source.Start(ctx, inbox); err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, source.Close())
	}()

	logger.CInfow(ctx, "waiting for aligned frames",
		"source", cfg.Source.Type,
		"path", cfg.Source.Path,
		"tolerance", cfg.ToleranceWindow,
		"output_dir", cfg.OutputDir,
	)
	return loop.Run(ctx)
}
