package causelist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/JustJay7/tribunal-registry/internal/config"
	"github.com/JustJay7/tribunal-registry/pkg/logger"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

var ErrPDFDisabled = errors.New("pdf export is disabled")

var pageTemplate = template.Must(template.New("causelist").Funcs(template.FuncMap{
	"amount": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; font-size: 11px; }
h1 { font-size: 16px; text-align: center; }
table { width: 100%; border-collapse: collapse; }
th, td { border: 1px solid #444; padding: 4px; text-align: left; }
th { background: #eee; }
td.num { text-align: right; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<table>
<thead>
<tr><th>S. No.</th><th>Case No.</th><th>Bench</th><th>Appellant</th><th>Respondent</th><th>A.Y.</th><th>Disputed Amount</th><th>Argued By</th><th>Remarks</th></tr>
</thead>
<tbody>
{{range .Entries}}<tr><td>{{.SerialNo}}</td><td>{{.CaseNo}}</td><td>{{.BenchType}}</td><td>{{.Appellant}}</td><td>{{.Respondent}}</td><td>{{.AssessmentYear}}</td><td class="num">{{amount .DisputedAmount}}</td><td>{{.ArguedBy}}</td><td>{{.Remarks}}</td></tr>
{{else}}<tr><td colspan="9">No matters listed.</td></tr>
{{end}}</tbody>
</table>
</body>
</html>`))

// RenderHTML renders the cause list as a standalone HTML page.
func RenderHTML(l *CauseList) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, l); err != nil {
		return nil, fmt.Errorf("failed to render cause list: %w", err)
	}
	return buf.Bytes(), nil
}

// Renderer prints cause lists to PDF with a headless browser. The browser is
// started on first use and shared by later calls.
type Renderer struct {
	cfg     *config.Config
	logger  *logger.Logger
	mu      sync.Mutex
	browser *rod.Browser
}

func NewRenderer(cfg *config.Config, log *logger.Logger) *Renderer {
	return &Renderer{cfg: cfg, logger: log}
}

// Enabled reports whether PDF export is switched on.
func (r *Renderer) Enabled() bool {
	return r != nil && r.cfg.PDFExportEnabled
}

var (
	newLauncher = func(cfg *config.Config) *launcher.Launcher {
		l := launcher.New().Headless(cfg.HeadlessMode)
		if cfg.BrowserPath != "" {
			l = l.Bin(cfg.BrowserPath)
		}
		return l
	}
	connectBrowser = func(b *rod.Browser) error { return b.Connect() }
)

func (r *Renderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := newLauncher(r.cfg)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := connectBrowser(browser); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	r.logger.Info("Browser started for PDF export", "headless", r.cfg.HeadlessMode)
	r.browser = browser
	return browser, nil
}

// RenderPDF prints the cause list to a PDF document.
func (r *Renderer) RenderPDF(ctx context.Context, l *CauseList) ([]byte, error) {
	if !r.Enabled() {
		return nil, ErrPDFDisabled
	}

	html, err := RenderHTML(l)
	if err != nil {
		return nil, err
	}

	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	timeout := r.cfg.RenderTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	renderCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	page = page.Context(renderCtx)
	if err := page.SetDocumentContent(string(html)); err != nil {
		return nil, fmt.Errorf("failed to load cause list: %w", err)
	}

	stream, err := page.PDF(&proto.PagePrintToPDF{
		Landscape:       true,
		PrintBackground: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to print pdf: %w", err)
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}

	r.logger.Debug("Cause list printed", "date", l.Date, "entries", len(l.Entries), "bytes", len(data))
	return data, nil
}

// Close shuts the browser down if it was started.
func (r *Renderer) Close() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}
