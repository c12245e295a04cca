// Package main is an entrypoint for application
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Semior001/intercede/app/cmd"
	"github.com/Semior001/intercede/pkg/logx"
	"github.com/gin-gonic/gin"
	"github.com/jessevdk/go-flags"
	"github.com/lmittmann/tint"
	"github.com/subosito/gotenv"
)

var opts struct {
	Server   cmd.Server `command:"server" description:"run intercede API server"`
	EnvFile  string     `long:"env-file" env:"ENV_FILE" default:".env" description:"file with environment variables to load"`
	JSONLogs bool       `long:"json-logs" env:"JSON_LOGS" description:"turn on json logs"`
	Debug    bool       `long:"dbg" env:"DEBUG" description:"turn on debug mode"`
}

var version = "unknown"

func getVersion() string {
	v, ok := debug.ReadBuildInfo()
	if !ok || v.Main.Version == "(devel)" || v.Main.Version == "" {
		return version
	}
	return v.Main.Version
}

func main() {
	fmt.Printf("intercede, version: %s\n", getVersion())

	// variables from the file don't override the ones already set
	envFileErr := gotenv.Load(envFile())

	opts.Server.Version = getVersion()

	p := flags.NewParser(&opts, flags.Default)
	p.CommandHandler = func(cmd flags.Commander, args []string) error {
		setupLog()

		if envFileErr != nil {
			slog.Debug("env file is not loaded", slog.Any("err", envFileErr))
		}

		if err := cmd.Execute(args); err != nil {
			slog.Error("failed to execute command", slog.Any("err", err))
			os.Exit(1)
		}

		return nil
	}

	// after failure command does not return non-zero code
	if _, err := p.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		} else {
			slog.Error("failed to parse flags", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// envFile looks up the env file location before flags are parsed,
// as the file may contain values for the flags.
func envFile() string {
	for i, arg := range os.Args[1:] {
		if arg == "--env-file" && i+2 < len(os.Args) {
			return os.Args[i+2]
		}
		if f, ok := strings.CutPrefix(arg, "--env-file="); ok {
			return f
		}
	}
	if f := os.Getenv("ENV_FILE"); f != "" {
		return f
	}
	return ".env"
}

func setupLog() {
	level := slog.LevelInfo
	addSource := false

	gin.SetMode(gin.ReleaseMode)

	if opts.Debug {
		level = slog.LevelDebug
		addSource = true
		gin.SetMode(gin.DebugMode)
	}

	var handler slog.Handler = tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		AddSource:  addSource,
		TimeFormat: time.DateTime,
	})

	if opts.JSONLogs {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level:     level,
			AddSource: addSource,
		})
	}

	slog.SetDefault(slog.New(logx.NewChain(handler, logx.RequestID())))
}
