package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/haukened/nimbus/internal/nimbus/domain"
	"github.com/haukened/nimbus/internal/nimbus/gateways/notify"
)

// openAction navigates one tab through every URL given, or through each
// line of stdin when none are, then waits for any downloads it started.
func (app *Application) openAction(c *cli.Context) error {
	ctx := c.Context
	if err := app.watchFilters(ctx); err != nil {
		app.logger.Warn(map[string]any{"error": err}, "filter_watch_unavailable")
	}

	out := c.App.Writer
	tab := app.pipeline.NewTab()
	navigate := func(url string) {
		res := tab.Navigate(ctx, url)
		printResult(c, res)
	}

	if c.NArg() > 0 {
		for _, url := range c.Args().Slice() {
			navigate(url)
		}
	} else {
		scanner := bufio.NewScanner(c.App.Reader)
		for scanner.Scan() && ctx.Err() == nil {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "" || strings.HasPrefix(line, "#"):
				continue
			case line == "save":
				dec, err := tab.Save(ctx)
				if err != nil {
					fmt.Fprintf(out, "save failed: %v\n", err)
					continue
				}
				fmt.Fprintf(out, "save\t%s\n", dec.Action)
			default:
				navigate(line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read urls: %w", err)
		}
	}

	err := app.waitDownloads(ctx)
	app.printFinished(c)
	return err
}

// printFinished prints a summary line per download that ended and reports
// whether any of them failed.
func (app *Application) printFinished(c *cli.Context) (failed bool) {
	for _, job := range app.takeFinished() {
		fmt.Fprintln(c.App.Writer, notify.Summary(job))
		failed = failed || job.State == domain.DownloadFailed
	}
	return failed
}

func printResult(c *cli.Context, res domain.LoadResult) {
	out := c.App.Writer
	switch res.State {
	case domain.LoadBlocked:
		fmt.Fprintf(out, "%s\t%s\t%s\n", res.State, res.URL, res.Decision.MatchedRule)
	case domain.LoadUnsupported:
		fmt.Fprintf(out, "%s\t%s\t%s\n", res.State, res.URL, res.Handling.Action)
	default:
		if res.Handling.Action == domain.ActionRedirectToViewer {
			fmt.Fprintf(out, "%s\t%s\tvia %s\n", res.State, res.URL, res.Handling.Viewer)
		} else {
			fmt.Fprintf(out, "%s\t%s\n", res.State, res.URL)
		}
	}
	if c.Bool("content") && res.Content != "" {
		fmt.Fprintln(out, res.Content)
	}
}

// checkAction reports the filter decision for one request.
func (app *Application) checkAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("check: expected exactly one url")
	}
	t, err := domain.ParseResourceType(c.String("type"))
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	dec := app.pipeline.Decide(domain.Request{
		URL:         c.Args().First(),
		DocumentURL: c.String("document"),
		Type:        t,
	})

	out := c.App.Writer
	switch {
	case dec.Blocked:
		fmt.Fprintf(out, "blocked\t%s\t%s\n", dec.MatchedRule, dec.Source)
	case dec.Exception:
		fmt.Fprintf(out, "allowed\t%s\t%s\n", dec.MatchedRule, dec.Source)
	default:
		fmt.Fprintln(out, "allowed")
	}
	return nil
}

// classifyAction reports how a response would be handled, without acting.
func (app *Application) classifyAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("classify: expected exactly one url")
	}
	dec := app.classifier.Classify(domain.ClassifyInput{
		URL:                 c.Args().First(),
		MIMEType:            c.String("mime"),
		UsingExternalViewer: c.Bool("in-viewer"),
		CurrentDocument:     c.String("current"),
		SaveRequested:       c.Bool("save"),
		Private:             app.config.Private,
	})
	if dec.Action == domain.ActionRedirectToViewer {
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", dec.Action, dec.Viewer, dec.ViewerURL)
		return nil
	}
	fmt.Fprintln(c.App.Writer, dec.Action)
	return nil
}

// getAction downloads one URL and waits for it to finish.
func (app *Application) getAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("get: expected exactly one url")
	}
	source := c.Args().First()
	dest, err := app.chooser.Choose(source, c.String("output"))
	if err != nil {
		return err
	}
	if _, err := app.downloads.Start(c.Context, source, dest); err != nil {
		app.printFinished(c)
		return fmt.Errorf("get: %w", err)
	}

	waitErr := app.waitDownloads(c.Context)
	failed := app.printFinished(c)
	if waitErr != nil {
		return waitErr
	}
	if failed {
		return fmt.Errorf("get: download of %s failed", source)
	}
	return nil
}

// filtersAction prints the counters of the loaded filter set.
func (app *Application) filtersAction(c *cli.Context) error {
	out := c.App.Writer
	if app.filters == nil {
		fmt.Fprintln(out, "filtering disabled")
		return nil
	}
	st := app.filters.Stats()
	fmt.Fprintf(out, "block rules:      %s\n", humanize.Comma(int64(st.BlockRules)))
	fmt.Fprintf(out, "exception rules:  %s\n", humanize.Comma(int64(st.ExceptionRules)))
	fmt.Fprintf(out, "indexed hosts:    %s\n", humanize.Comma(int64(st.IndexedHosts)))
	fmt.Fprintf(out, "rejected:         %s\n", humanize.Comma(int64(st.Rejected)))
	fmt.Fprintf(out, "built:            %s\n", humanize.Time(st.BuiltAt))
	return nil
}

// clearCacheAction empties the offline cache.
func (app *Application) clearCacheAction(c *cli.Context) error {
	if app.cache == nil {
		return fmt.Errorf("clear-cache: offline cache is disabled")
	}
	if err := app.cache.Clear(); err != nil {
		return fmt.Errorf("clear-cache: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "offline cache cleared")
	return nil
}
