package cmd

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/jpfielding/dicomjxl.go/pkg/config"
	"github.com/jpfielding/dicomjxl.go/pkg/logging"
	"github.com/spf13/cobra"
)

func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jxlctl",
		Short: "a CLI to transcode DICOM pixel data to and from JPEG-XL",
		Long:  "jxlctl inspects DICOM files and converts their pixel data between native and JPEG-XL transfer syntaxes",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFile, _ := cmd.Flags().GetString("log-file")
			logJSON, _ := cmd.Flags().GetBool("log-json")

			var level slog.Level
			levelErr := level.UnmarshalText([]byte(strings.ToUpper(logLevel)))
			if levelErr != nil {
				level = slog.LevelInfo
			}
			var w io.Writer = os.Stderr
			if logFile != "" {
				w = logging.RollingFile(logFile, 100, 3)
			}
			slog.SetDefault(logging.Logger(w, logJSON, level))
			if levelErr != nil {
				slog.WarnContext(ctx, "Invalid log level, defaulting to INFO", "level", logLevel, "error", levelErr)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd, 0)
		},
	}
	cmd.AddCommand(
		NewVersionCmd(ctx, gitsha),
		NewInfoCmd(ctx),
		NewDumpCmd(ctx),
		NewTranscodeCmd(ctx),
		NewDecodeCmd(ctx),
		NewBenchCmd(ctx),
	)
	pf := cmd.PersistentFlags()
	pf.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.String("log-file", "", "rolling log file, stderr when empty")
	pf.Bool("log-json", false, "log as JSON")
	pf.StringP("config", "c", "", "JSON configuration document with a "+config.Section+" section")
	return cmd
}

func printCommandTree(cmd *cobra.Command, indent int) {
	fmt.Println(strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(subCmd, indent+1)
	}
}

func NewVersionCmd(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Long:  "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(gitsha)
		},
	}
	return cmd
}

// loadConfig reads --config, falling back to the defaults when it is unset
func loadConfig(ctx context.Context, cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	slog.DebugContext(ctx, "configuration loaded", slog.String("path", path), slog.Any("config", cfg))
	return cfg, nil
}

// readInput loads a file path, "-" for stdin, or an http(s) URL
func readInput(ctx context.Context, uri string, insecure bool) ([]byte, error) {
	uri = strings.TrimPrefix(uri, "file://")
	switch {
	case uri == "":
		return nil, fmt.Errorf("input is required. Use --in flag or provide as argument")
	case uri == "-":
		return io.ReadAll(os.Stdin)
	case strings.HasPrefix(uri, "http"):
		cl := &http.Client{}
		if insecure {
			cl.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := cl.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to download: %s", resp.Status)
		}
		return io.ReadAll(resp.Body)
	default:
		return os.ReadFile(uri)
	}
}

// inputFlags registers --in and --insecure on cmd
func inputFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringP("in", "i", "", "DICOM input: path, - for stdin, or http(s) URL")
	pf.Bool("insecure", false, "skip TLS verification for http inputs")
}

func readInputFlag(ctx context.Context, cmd *cobra.Command, args []string) ([]byte, error) {
	in, _ := cmd.Flags().GetString("in")
	insecure, _ := cmd.Flags().GetBool("insecure")
	if in == "" && len(args) > 0 {
		in = args[0]
	}
	return readInput(ctx, in, insecure)
}
