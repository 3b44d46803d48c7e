// Command invctl manages inventory items and fetches reports from the shell.
//
//	invctl items list
//	invctl items add -name Widget -qty 3 -price 2.50
//	invctl items rm 1
//	invctl report download [-format csv] [-dir ./out]
//	invctl report sample [-format pdf]
//	invctl report preview [-format html]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"

	"inventory_reports/internal/delivery"
	"inventory_reports/internal/inventory"
	"inventory_reports/internal/reclaim"
	"inventory_reports/internal/reports"
	"inventory_reports/internal/resources"
	"inventory_reports/internal/shell/handler"
	"inventory_reports/platform/apperr"
	"inventory_reports/platform/config"
	"inventory_reports/platform/logger"
	"inventory_reports/platform/validator"
)

const usage = `usage:
  invctl items list
  invctl items add -name NAME -qty N -price P
  invctl items rm ID
  invctl report download|sample|preview [-format FMT] [-dir DIR]
`

type cli struct {
	cfg *config.Config
	log *logger.Logger
	out io.Writer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{cfg: cfg, log: logger.NewWithWriter(cfg.Env, os.Stderr), out: os.Stdout}
	if err := c.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if apperr.Is(err, apperr.KindValidation) || apperr.Is(err, apperr.KindInvalidFormat) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New(usage)
	}
	switch args[0] {
	case "items":
		return c.items(ctx, args[1], args[2:])
	case "report":
		return c.report(ctx, args[1], args[2:])
	default:
		return errors.New(usage)
	}
}

func (c *cli) store() *inventory.Store {
	client := inventory.NewClient(c.cfg.GetReportServiceURL(), c.cfg.GetRequestTimeout())
	return inventory.NewStore(client, validator.New(), c.log)
}

func (c *cli) items(ctx context.Context, sub string, args []string) error {
	store := c.store()

	switch sub {
	case "list":
		if err := store.Refresh(ctx); err != nil {
			return err
		}

	case "add":
		fs := flag.NewFlagSet("items add", flag.ContinueOnError)
		name := fs.String("name", "", "item name")
		qty := fs.Int("qty", 0, "quantity")
		price := fs.Float64("price", 0, "unit price")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := store.Add(ctx, inventory.NewItem{Name: *name, Quantity: *qty, Price: *price}); err != nil {
			return err
		}

	case "rm":
		if len(args) != 1 {
			return errors.New(usage)
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return apperr.Validation("item id must be a number")
		}
		if err := store.Remove(ctx, id); err != nil {
			return err
		}

	default:
		return errors.New(usage)
	}

	return c.printItems(store.Items())
}

func (c *cli) printItems(items []inventory.Item) error {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tName\tQuantity\tPrice\tTotal\t")
	for _, it := range items {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t\n", it.ID, it.Name, it.Quantity, it.UnitPrice(), it.Total())
	}
	fmt.Fprintf(tw, "\t\t\tGrand Total:\t%s\t\n", inventory.GrandTotal(items))
	return tw.Flush()
}

func (c *cli) report(ctx context.Context, sub string, args []string) error {
	fs := flag.NewFlagSet("report "+sub, flag.ContinueOnError)
	formatFlag := fs.String("format", c.cfg.GetDefaultFormat(), "one of pdf, xlsx, csv, docx, pptx, html")
	dir := fs.String("dir", c.cfg.GetDownloadDir(), "download directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	selector := reports.NewSelector(reports.FormatPDF)
	if err := selector.SetToken(*formatFlag); err != nil {
		return err
	}

	requester := reports.NewRequester(c.cfg.GetReportServiceURL(), c.cfg.GetRequestTimeout(), c.log)
	notes := &printNotifier{out: c.out}

	switch sub {
	case "download", "sample":
		manager := resources.NewManager(resources.NewMemoryStore(), resources.BaseURLLinker{}, c.log)
		svc := delivery.NewService(delivery.Config{
			Requester: requester,
			Handles:   manager,
			Saver:     delivery.FileSaver{Dir: *dir},
			Notifier:  notes,
			Log:       c.log,
		})
		defer svc.Close()

		var res delivery.DownloadResult
		var err error
		if sub == "sample" {
			res, err = svc.DownloadSample(ctx, selector.Get())
		} else {
			res, err = svc.Download(ctx, selector.Get())
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, res.Path)
		return nil

	case "preview":
		return c.preview(ctx, requester, selector.Get(), notes)

	default:
		return errors.New(usage)
	}
}

// preview serves the report from a loopback listener and opens it in the
// browser. The command exits once the reclaim TTL releases the handle or on
// interrupt.
func (c *cli) preview(ctx context.Context, requester *reports.Requester, format reports.Format, notes delivery.Notifier) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	baseURL := "http://" + ln.Addr().String()

	manager := resources.NewManager(resources.NewMemoryStore(), resources.BaseURLLinker{BaseURL: baseURL}, c.log)
	defer func() { _ = manager.Close(context.Background()) }()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.GET("/blobs/:id", handler.New(handler.Deps{Blobs: manager, Log: c.log}).ServeBlob)
	srv := &http.Server{Handler: engine, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Close() }()

	ttl := c.cfg.GetExternalPreviewTTL()
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	sched := reclaim.NewTimerScheduler(manager, c.log)
	defer func() { _ = sched.Close() }()

	var opener delivery.Opener = delivery.BrowserOpener{}
	if !c.cfg.GetOpenBrowser() {
		opener = &delivery.LinkOpener{}
	}

	svc := delivery.NewService(delivery.Config{
		Requester:          requester,
		Handles:            manager,
		Opener:             opener,
		Notifier:           notes,
		Scheduler:          sched,
		Log:                c.log,
		ExternalPreviewTTL: ttl,
	})
	defer svc.Close()

	h, err := svc.ExternalPreview(ctx, format)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "preview at %s (available for %s, Ctrl-C to stop)\n", h.URL, ttl)

	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for manager.Live(h.ID) {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
	return nil
}

type printNotifier struct {
	out io.Writer
}

func (p *printNotifier) Notify(level delivery.Level, message string) {
	if level == delivery.LevelError {
		fmt.Fprintln(os.Stderr, message)
		return
	}
	fmt.Fprintln(p.out, message)
}
