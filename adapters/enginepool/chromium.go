package enginepool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/admsmc/dykstra-funeral-website-sub003/docgen"
)

// cssDPI is the resolution Chromium lays CSS pixels out at. Print
// resolution requests scale relative to it.
const cssDPI = 96.0

var pdfPageSizesInches = map[string]struct {
	width  float64
	height float64
}{
	"A3":     {width: 11.69, height: 16.54},
	"A4":     {width: 8.27, height: 11.69},
	"A5":     {width: 5.83, height: 8.27},
	"LETTER": {width: 8.5, height: 11},
	"LEGAL":  {width: 8.5, height: 14},
}

// ChromiumConfig configures one headless Chromium instance.
type ChromiumConfig struct {
	BrowserPath string
	Headless    bool
	Args        []string
}

// NewChromiumFactory returns a Factory that starts one headless Chromium
// browser per pool instance. Each instance owns its own allocator so a
// crash never poisons its siblings.
func NewChromiumFactory(cfg ChromiumConfig) Factory {
	return func(ctx context.Context) (Engine, error) {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if cfg.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(cfg.BrowserPath))
		}
		options = append(options, chromedp.Flag("headless", cfg.Headless))
		options = append(options, allocatorOptionsFromArgs(cfg.Args)...)

		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), options...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)

		// Start the browser process now so startup failures surface at
		// acquire time rather than in the middle of the first render.
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			allocCancel()
			return nil, err
		}

		return &chromiumEngine{
			allocCancel:   allocCancel,
			browserCtx:    browserCtx,
			browserCancel: browserCancel,
		}, nil
	}
}

type chromiumEngine struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Render converts resolved HTML into PDF bytes in a fresh tab.
func (e *chromiumEngine) Render(ctx context.Context, html []byte, opts docgen.OutputOptions) ([]byte, error) {
	if err := e.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser process is gone: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(e.browserCtx)
	defer cancelTab()

	execCtx, cancelReq := context.WithCancel(tabCtx)
	defer cancelReq()
	go func() {
		select {
		case <-ctx.Done():
			cancelReq()
		case <-execCtx.Done():
		}
	}()

	params, err := buildPrintToPDFParams(opts)
	if err != nil {
		return nil, err
	}

	var pdf []byte
	actions := []chromedp.Action{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err = params.Do(ctx)
			return err
		}),
	}

	if err := chromedp.Run(execCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return pdf, nil
}

// Close terminates the browser process.
func (e *chromiumEngine) Close() error {
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

func buildPrintToPDFParams(opts docgen.OutputOptions) (*page.PrintToPDFParams, error) {
	params := page.PrintToPDF().WithPrintBackground(true)

	scale := 1.0
	if opts.DPI > 0 {
		scale = float64(opts.DPI) / cssDPI
	}
	if scale < 0.1 {
		scale = 0.1
	}
	if scale > 2.0 {
		scale = 2.0
	}
	params = params.WithScale(scale)

	if opts.Landscape {
		params = params.WithLandscape(true)
	}

	if opts.PageSize != "" {
		size, ok := pdfPageSizesInches[strings.ToUpper(opts.PageSize)]
		if !ok {
			return nil, docgen.NewError(docgen.KindValidation,
				fmt.Sprintf("unsupported page size: %s", opts.PageSize), nil)
		}
		params = params.WithPaperWidth(size.width).WithPaperHeight(size.height)
	}

	for _, margin := range []struct {
		value string
		apply func(float64) *page.PrintToPDFParams
	}{
		{opts.MarginTop, params.WithMarginTop},
		{opts.MarginBottom, params.WithMarginBottom},
		{opts.MarginLeft, params.WithMarginLeft},
		{opts.MarginRight, params.WithMarginRight},
	} {
		if margin.value == "" {
			continue
		}
		inches, err := parseLengthInches(margin.value)
		if err != nil {
			return nil, err
		}
		params = margin.apply(inches)
	}

	return params, nil
}

func parseLengthInches(value string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	unit := "in"
	number := trimmed
	for _, suffix := range []string{"in", "cm", "mm", "pt", "px"} {
		if strings.HasSuffix(trimmed, suffix) {
			unit = suffix
			number = strings.TrimSpace(strings.TrimSuffix(trimmed, suffix))
			break
		}
	}

	var amount float64
	if _, err := fmt.Sscanf(number, "%f", &amount); err != nil {
		return 0, docgen.NewError(docgen.KindValidation, fmt.Sprintf("invalid length: %s", value), err)
	}

	switch unit {
	case "in":
		return amount, nil
	case "cm":
		return amount / 2.54, nil
	case "mm":
		return amount / 25.4, nil
	case "pt":
		return amount / 72.0, nil
	case "px":
		return amount / cssDPI, nil
	}
	return 0, errors.New("unreachable")
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(arg), "--"))
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}
