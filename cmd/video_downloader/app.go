package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/video_downloader/internal/cleanup"
	"github.com/italolelis/video_downloader/internal/config"
	"github.com/italolelis/video_downloader/internal/downloader"
	"github.com/italolelis/video_downloader/internal/downloader/progress"
	"github.com/italolelis/video_downloader/internal/http/rest"
	"github.com/italolelis/video_downloader/internal/logctx"
	"github.com/italolelis/video_downloader/internal/notifier"
	"github.com/italolelis/video_downloader/internal/remote"
	"github.com/italolelis/video_downloader/internal/saver"
	"github.com/italolelis/video_downloader/internal/telemetry"
	"github.com/italolelis/video_downloader/internal/video"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// consoleEvery is how often the console progress line is redrawn.
const consoleEvery = 256 * 1024

type app struct {
	cfg       *config.Config
	telemetry *telemetry.Telemetry
	client    video.Client
	notifier  notifier.Notifier
}

func newApp(cfg *config.Config, tel *telemetry.Telemetry) *cli.App {
	a := &app{
		cfg:       cfg,
		telemetry: tel,
		client: video.NewInstrumentedClient(
			remote.NewClient(cfg.ServiceURL, cfg.MetadataPath, cfg.DownloadPath, cfg.Insecure),
			tel,
			"http",
		),
	}

	if cfg.DiscordWebhookURL != "" {
		a.notifier = notifier.NewDiscordNotifier(cfg.DiscordWebhookURL)
	}

	return &cli.App{
		Name:    "video_downloader",
		Usage:   "download videos through a video extraction service",
		Version: version,
		Commands: []*cli.Command{{
			Name:      "info",
			Usage:     "show the title, duration and available formats of a video",
			ArgsUsage: "URL",
			Action:    a.info,
		}, {
			Name:      "download",
			Usage:     "download a video and save it to the output directory",
			ArgsUsage: "URL",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Usage:   "extension of the rendition to download. Defaults to the first one offered.",
				},
				&cli.StringFlag{
					Name:    "output-dir",
					Aliases: []string{"o"},
					Usage:   "directory the file is saved to",
					Value:   cfg.OutputDir,
				},
			},
			Action: a.download,
		}},
	}
}

func sourceURL(c *cli.Context) (string, error) {
	switch {
	case c.Args().Len() == 0:
		return "", errors.New("missing video URL")
	case c.Args().Len() > 1:
		return "", fmt.Errorf("unexpected arguments %q: flags go before the URL", c.Args().Tail())
	}

	return c.Args().First(), nil
}

func (a *app) info(c *cli.Context) error {
	u, err := sourceURL(c)
	if err != nil {
		return err
	}

	meta, err := a.client.FetchMetadata(c.Context, u)
	if err != nil {
		return err
	}

	printInfo(c.App.Writer, meta)

	return nil
}

func printInfo(w io.Writer, meta *video.Metadata) {
	fmt.Fprintf(w, "Title: %s\n", meta.Title)
	fmt.Fprintf(w, "Duration: %s\n", video.FormatDuration(meta.Duration))

	if meta.Thumbnail != "" {
		fmt.Fprintf(w, "Thumbnail: %s\n", meta.Thumbnail)
	}

	fmt.Fprintln(w, "Formats:")

	for _, r := range meta.Renditions {
		fmt.Fprintf(w, "  %-16s [%s]\n", r.Label(), r.Extension)
	}
}

// selectFormat returns requested when the video offers it, or the first
// rendition when nothing was requested.
func selectFormat(meta *video.Metadata, requested string) (string, error) {
	if len(meta.Renditions) == 0 {
		return "", errors.New("no formats available for this video")
	}

	if requested == "" {
		return meta.Renditions[0].Extension, nil
	}

	if meta.Offers(requested) {
		return requested, nil
	}

	offered := make([]string, 0, len(meta.Renditions))
	for _, r := range meta.Renditions {
		offered = append(offered, r.Extension)
	}

	return "", fmt.Errorf("format %q is not available (choose one of: %s)", requested, strings.Join(offered, ", "))
}

func (a *app) download(c *cli.Context) error {
	u, err := sourceURL(c)
	if err != nil {
		return err
	}

	ctx := c.Context
	logger := logctx.LoggerFromContext(ctx)

	var (
		hub     *rest.Hub
		tracker = rest.NewTracker(nil)
	)

	if a.cfg.Web.Enabled {
		hub = rest.NewHub()
		tracker = rest.NewTracker(hub)
	}

	g, gctx := errgroup.WithContext(ctx)

	var (
		server  *http.Server
		stopHub = func() {}
	)

	if a.cfg.Web.Enabled {
		server = a.newStatusServer(gctx, tracker, hub)

		var hubCtx context.Context
		hubCtx, stopHub = context.WithCancel(gctx)

		g.Go(func() error {
			hub.Run(hubCtx)

			return nil
		})

		g.Go(func() error {
			logger.Info("status server listening", "host", server.Addr)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server error: %w", err)
			}

			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			if server != nil {
				a.shutdown(ctx, server)
			}

			if hub != nil {
				logger.Debug("closing progress stream", "subscribers", hub.ClientCount())
			}

			stopHub()
		}()

		target, err := a.fetchAndSave(gctx, c, u, tracker)
		if err != nil {
			tracker.Fail(err)
			a.notify(ctx, notifier.DownloadFailed(u, err))

			return err
		}

		tracker.Done(target)
		fmt.Fprintf(c.App.Writer, "Saved to %s\n", target)
		a.notify(ctx, notifier.DownloadFinished(target))

		return nil
	})

	return g.Wait()
}

func (a *app) fetchAndSave(ctx context.Context, c *cli.Context, u string, tracker *rest.Tracker) (string, error) {
	meta, err := a.client.FetchMetadata(ctx, u)
	if err != nil {
		return "", err
	}

	format, err := selectFormat(meta, c.String("format"))
	if err != nil {
		return "", err
	}

	logEvery, err := a.cfg.ProgressLogBytes()
	if err != nil {
		return "", err
	}

	fmt.Fprintf(c.App.Writer, "Downloading %q as %s\n", meta.Title, format)

	drew := false
	console := progress.Throttle(consoleEvery, func(p video.Progress) {
		drew = true
		consoleProgress(c.App.ErrWriter, p)
	})

	tracker.Start(u, format)

	d := downloader.NewDownloader(a.client, a.telemetry, logEvery)

	result, err := d.Download(ctx, u, format, func(p video.Progress) {
		tracker.Progress(p)
		console(p)
	})

	if drew {
		fmt.Fprintln(c.App.ErrWriter)
	}

	if err != nil {
		return "", err
	}

	tracker.Saving(result.Filename)

	outputDir := c.String("output-dir")

	if _, err := cleanup.DeleteStalePartials(ctx, outputDir, a.cfg.PartialRetention); err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to sweep stale partial files", "dir", outputDir, "err", err)
	}

	return saver.New(outputDir, a.telemetry).Save(ctx, result)
}

// consoleProgress redraws the progress line on w.
func consoleProgress(w io.Writer, p video.Progress) {
	if pct, ok := p.Percent(); ok {
		fmt.Fprintf(w, "\rDownloading... %5.1f%% (%s of %s)",
			pct, humanize.Bytes(uint64(p.Received)), humanize.Bytes(uint64(p.Total)))

		return
	}

	fmt.Fprintf(w, "\rDownloading... %s", humanize.Bytes(uint64(p.Received)))
}

func (a *app) notify(ctx context.Context, msg string) {
	if a.notifier == nil {
		return
	}

	if err := a.notifier.Notify(context.WithoutCancel(ctx), msg); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to send notification", "err", err)
	}
}

// newStatusServer prepares the handlers and services of the local status server.
func (a *app) newStatusServer(ctx context.Context, tracker *rest.Tracker, hub *rest.Hub) *http.Server {
	handler := rest.NewStatusHandler(tracker, hub, a.telemetry)

	return &http.Server{
		Addr:        a.cfg.Web.BindAddress,
		ReadTimeout: a.cfg.Web.ReadTimeout,
		IdleTimeout: a.cfg.Web.IdleTimeout,
		Handler:     handler.Routes(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

func (a *app) shutdown(ctx context.Context, server *http.Server) {
	logger := logctx.LoggerFromContext(ctx)

	// Give outstanding requests a deadline for completion.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Web.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("failed to gracefully shutdown the status server", "err", err)

		if err := server.Close(); err != nil {
			logger.Error("could not stop status server", "err", err)
		}
	}
}
