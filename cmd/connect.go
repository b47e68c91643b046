package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jrwilson/substrate/client"
	"github.com/jrwilson/substrate/internal/env"
	"github.com/jrwilson/substrate/protocol"
	"github.com/jrwilson/substrate/session"
)

var (
	snapshotPath   string
	thumbnailWidth uint
	connectTimeout time.Duration
	connectVersion string
	bigEndian      bool
)

func init() {
	flags := ConnectCmd.Flags()

	flags.StringVarP(&snapshotPath, "snapshot", "o", "snapshot.png", "Where to write the PNG snapshot")
	flags.UintVar(&thumbnailWidth, "thumbnail-width", 0, "Scale the snapshot to this width, 0 keeps the server's width")
	flags.DurationVar(&connectTimeout, "timeout", 10*time.Second, "Give up if no framebuffer arrives in time")
	flags.StringVar(&connectVersion, "version", "3.8", "Highest protocol version to speak")
	flags.BoolVar(&bigEndian, "big-endian", false, "Ask for big-endian pixels")
}

var ConnectCmd = &cobra.Command{
	Use:   "connect host:port",
	Short: "Connect to an RFB server and snapshot its framebuffer",
	Long: `Connect to an RFB server and snapshot its framebuffer

Completes the handshake with no authentication, waits for the first
framebuffer update and writes it out as a PNG.

Usage
	substrate connect localhost:5900 --snapshot desktop.png --thumbnail-width 320

`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		log, err := env.MakeLogger(conf.LogLevel)
		if err != nil {
			return err
		}

		version, err := protocol.ParseVersionString(connectVersion)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		conn, err := client.Dial(ctx, client.Options{
			Addr: args[0],
			Session: session.ClientOptions{
				Version:     version,
				PixelFormat: protocol.PixelFormatRGB888(bigEndian),
			},
			Log: log.Named("client"),
		})
		if err != nil {
			return err
		}

		defer func() {
			err = multierr.Append(err, conn.Close())
		}()

		go func() {
			if err := conn.Run(ctx); err != nil {
				log.Warn("Connection failed", zap.Error(err))
			}
		}()

		if err := conn.WaitForUpdate(ctx); err != nil {
			return fmt.Errorf("Failed to receive a framebuffer from '%s': %w", args[0], err)
		}

		f, err := os.Create(snapshotPath)
		if err != nil {
			return err
		}

		if err := conn.Snapshot(f, thumbnailWidth); err != nil {
			return multierr.Append(err, f.Close())
		}

		if err := f.Close(); err != nil {
			return err
		}

		status := conn.Status()
		log.Info("Wrote snapshot",
			zap.String("path", snapshotPath),
			zap.String("desktop", conn.Name()),
			zap.String("version", status.Version),
			zap.Int("width", status.Width),
			zap.Int("height", status.Height))

		return nil
	},
}
