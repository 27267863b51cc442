// Command bitmapdemo decodes images into cropped thumbnails through a shared
// raster cache.
//
// Usage:
//
//	bitmapdemo -in photos/ -out thumbs/ -width 160 -height 160
//
// Inputs may be plain image files or .zst/.gz compressed ones. Runtime
// behaviour is configured with BITMAP_* and LOG_* environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/bitmap"
	"github.com/gogpu/bitmap/cache"
	"github.com/gogpu/bitmap/config"
	"github.com/gogpu/bitmap/decoder"
	"github.com/gogpu/bitmap/internal/logger"
	"github.com/gogpu/bitmap/source"
)

// options are the command-line flags.
type options struct {
	in     string
	out    string
	width  int
	height int
	passes int
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", ".", "input image file or directory")
	flag.StringVar(&opts.out, "out", "thumbs", "output directory")
	flag.IntVar(&opts.width, "width", 160, "thumbnail width")
	flag.IntVar(&opts.height, "height", 160, "thumbnail height")
	flag.IntVar(&opts.passes, "passes", 1, "decode every input this many times")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	log := logger.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := run(ctx, cfg, opts, log)
	if err != nil {
		log.Fatal().Err(err).Msg("bitmapdemo failed")
	}
	sum.print(os.Stdout)
}

// summary counts what a run did.
type summary struct {
	written   int
	reused    int
	failed    int
	cancelled int
	stats     cache.Stats
	elapsed   time.Duration
}

func (s summary) print(w io.Writer) {
	p := message.NewPrinter(language.English)
	_, _ = p.Fprintf(w, "%d thumbnails written, %d served again, %d failed, %d cancelled in %v\n",
		s.written, s.reused, s.failed, s.cancelled, s.elapsed.Round(time.Millisecond))
	_, _ = p.Fprintf(w, "cache: %d entries, %d bytes, %d hits, %d buffers recycled, %.1f%% hit rate\n",
		s.stats.Len, s.stats.Bytes, s.stats.Hits, s.stats.Polls, s.stats.HitRate()*100)
}

func run(ctx context.Context, cfg config.Config, opts options, log zerolog.Logger) (summary, error) {
	start := time.Now()
	bitmap.SetLogger(logger.Slog(log))
	defer bitmap.SetLogger(nil)

	inputs, err := listInputs(opts.in)
	if err != nil {
		return summary{}, err
	}
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return summary{}, fmt.Errorf("create output dir: %w", err)
	}

	loaderOpts := []bitmap.Option{
		bitmap.WithCacheBudget(cfg.Cache.Budget),
		bitmap.WithBufferReuse(cfg.Decode.Reuse),
		bitmap.WithCropping(cfg.Decode.Crop),
		bitmap.WithWorkers(cfg.Decode.Workers),
		bitmap.WithOrientationReader(decoder.EXIF{}),
	}
	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		loaderOpts = append(loaderOpts, bitmap.WithMetrics(reg, "bitmap"))
		srv = serveMetrics(cfg.Metrics.Addr, reg, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	l, err := bitmap.NewLoader(decoder.NewSoftware(), loaderOpts...)
	if err != nil {
		return summary{}, err
	}
	defer l.Close()

	var sum summary
	for pass := range max(opts.passes, 1) {
		tasks := make([]*bitmap.DecodeTask, 0, len(inputs))
		for _, in := range inputs {
			t, err := l.Load(bitmap.Request{Key: source.FromPath(in), Width: opts.width, Height: opts.height})
			if err != nil {
				discard(tasks)
				return sum, err
			}
			tasks = append(tasks, t)
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		if pass == 0 {
			// Later passes write nothing, and blocking polls need every
			// cache hit released promptly.
			g.SetLimit(runtime.GOMAXPROCS(0))
		}
		for i, t := range tasks {
			g.Go(func() error {
				res, err := finish(gctx, t, inputs[i], pass, opts.out, log)
				mu.Lock()
				sum.add(res)
				mu.Unlock()
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return sum, err
		}
		if ctx.Err() != nil {
			break
		}
		if pass == 0 && cfg.Cache.Blocking {
			enableBlocking(l, log)
		}
	}

	sum.stats = l.Cache().Stats()
	sum.elapsed = time.Since(start)
	return sum, nil
}

// enableBlocking turns on blocking polls once the cache holds buffers to hand
// out. Enabled earlier, every decode would wait on an empty pool.
func enableBlocking(l *bitmap.Loader, log zerolog.Logger) {
	c := l.Cache()
	if c.Len()+c.PoolLen() == 0 {
		log.Warn().Msg("cache is empty after the first pass, blocking polls stay off")
		return
	}
	l.SetBlocking(true)
	log.Debug().Int("entries", c.Len()).Int("pooled", c.PoolLen()).Msg("blocking polls enabled")
}

// result is the outcome of one task.
type result int

const (
	written result = iota
	reused
	failed
	cancelled
)

func (s *summary) add(r result) {
	switch r {
	case written:
		s.written++
	case reused:
		s.reused++
	case failed:
		s.failed++
	case cancelled:
		s.cancelled++
	}
}

// finish waits for t and writes its thumbnail on the first pass.
func finish(ctx context.Context, t *bitmap.DecodeTask, input string, pass int, outDir string, log zerolog.Logger) (result, error) {
	h, err := bitmap.Await(ctx, t.Events())
	switch {
	case err != nil && ctx.Err() != nil:
		discard([]*bitmap.DecodeTask{t})
		return cancelled, nil
	case errors.Is(err, bitmap.ErrCancelled):
		return cancelled, nil
	case err != nil:
		log.Warn().Err(err).Str("input", input).Str("task", t.ID()).Msg("decode failed")
		return failed, nil
	}
	defer h.Release()

	if pass > 0 {
		return reused, nil
	}
	if err := writeThumbnail(filepath.Join(outDir, thumbName(input)), h.Raster()); err != nil {
		return failed, err
	}
	log.Debug().Str("input", input).Str("task", t.ID()).Msg("thumbnail written")
	return written, nil
}

// discard cancels tasks and releases any result they still publish.
func discard(tasks []*bitmap.DecodeTask) {
	for _, t := range tasks {
		t.Cancel()
	}
	for _, t := range tasks {
		<-t.Done()
		for e := range t.Events() {
			if e.Result != nil {
				e.Result.Release()
			}
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}

// listInputs returns path itself or the regular files directly inside it.
func listInputs(path string) ([]string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, filepath.Join(path, e.Name()))
		}
	}
	return out, nil
}

// thumbName maps photo.jpg.zst to photo.thumb.png.
func thumbName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".zst", ".zstd", ".gz"} {
		name = strings.TrimSuffix(name, ext)
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".thumb.png"
}

func writeThumbnail(path string, r *bitmap.Raster) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, r.Oriented()); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
