// Package asite drives the remote inspection site through a real browser.
package asite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/camden-git/sitephotosync/traversal"
)

// FormDefaults are written into empty text fields of a form. The area of
// inspection is copied from the form's site location.
type FormDefaults struct {
	Reference   string
	Title       string
	Certificate string
	// Materials answers the last text field, the storage confirmation.
	Materials string
	// Comment is added to the quality plan item when it has no comment.
	Comment string
}

func DefaultFormDefaults() FormDefaults {
	return FormDefaults{
		Reference:   "BMS01.G01",
		Title:       "Quality policy",
		Certificate: "IFC Certificate number: IFCC 3054",
		Materials:   "Yes",
		Comment:     planComment,
	}
}

const planComment = "ITP and PQP uploaded on Asite\n" +
	"H8499-LEM-SW-ZZ-QA-CT-19715 PQP\n" +
	"H8499-LEM-SW-ZZ-QA-CO-LM123 ITP\n"

type Options struct {
	SiteURL    string
	Login      string
	Password   string
	Bin        string
	ControlURL string
	Headless   bool

	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	UploadTimeout     time.Duration

	// FormColumn is the table column holding the form cell of a plot row.
	FormColumn int
	Form       FormDefaults
}

func (o *Options) applyDefaults() {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 20 * time.Second
	}
	if o.ElementTimeout <= 0 {
		o.ElementTimeout = 10 * time.Second
	}
	if o.UploadTimeout <= 0 {
		o.UploadTimeout = 2 * time.Minute
	}
	if o.FormColumn <= 0 {
		o.FormColumn = 33
	}
	if o.Form == (FormDefaults{}) {
		o.Form = DefaultFormDefaults()
	}
}

// Browser is a logged-in browser showing the quality plan. It implements
// traversal.PageDriver for the plan table and the form operations used by
// the dispatcher. It is not safe for concurrent use.
type Browser struct {
	opts     Options
	launcher *launcher.Launcher
	browser  *rod.Browser
	plan     *rod.Page

	// form is the tab of the open form, formRoot the frame its fields live in.
	form     *rod.Page
	formRoot *rod.Page

	log *zap.Logger
}

var _ traversal.PageDriver = (*Browser)(nil)

// Open connects to ControlURL, or launches a browser, then logs in and opens
// the quality plan.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.applyDefaults()
	b := &Browser{opts: opts, log: logger.Named("asite")}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		b.launcher = l
		controlURL = u
	}

	b.browser = rod.New().ControlURL(controlURL)
	if err := b.browser.Connect(); err != nil {
		b.kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	b.plan = page

	if err := b.authorize(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the browser, and kills it when it was launched by Open.
func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	b.kill()
	return err
}

func (b *Browser) kill() {
	if b.launcher != nil {
		b.launcher.Kill()
	}
}

// EnsureSession logs in again when the site reports the session as
// unauthorised.
func (b *Browser) EnsureSession(ctx context.Context) error {
	info, err := b.plan.Context(ctx).Info()
	if err == nil && !strings.EqualFold(info.Title, unauthorisedTitle) {
		return nil
	}
	b.log.Warn("session invalid, logging in again", zap.Error(err))
	b.closeForm()
	return b.authorize(ctx)
}

func (b *Browser) authorize(ctx context.Context) error {
	if err := b.login(ctx); err != nil {
		return &traversal.SessionError{Op: "login", Err: err}
	}
	if err := b.openPlan(ctx); err != nil {
		return &traversal.SessionError{Op: "open quality plan", Err: err}
	}
	b.log.Info("logged in", zap.String("site", b.opts.SiteURL))
	return nil
}

func (b *Browser) login(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()
	page := b.plan.Context(ctx)

	if err := page.Navigate(strings.TrimRight(b.opts.SiteURL, "/") + "/login"); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return err
	}
	frameEl, err := page.ElementX(loginFrameXPath)
	if err != nil {
		return fmt.Errorf("login frame not found: %w", err)
	}
	frame, err := frameEl.Frame()
	if err != nil {
		return err
	}
	for _, field := range []struct{ xpath, value string }{
		{loginInputXPath, b.opts.Login},
		{passwordInputXPath, b.opts.Password},
	} {
		el, err := frame.ElementX(field.xpath)
		if err != nil {
			return fmt.Errorf("login field not found: %w", err)
		}
		if err := el.Input(field.value); err != nil {
			return err
		}
	}
	submit, err := frame.ElementX(loginSubmitXPath)
	if err != nil {
		return err
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (b *Browser) openPlan(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()
	page := b.plan.Context(ctx)

	for _, xpath := range []string{moreNavXPath, qualityNavXPath} {
		el, err := page.ElementX(xpath)
		if err != nil {
			return fmt.Errorf("navigation element %s not found: %w", xpath, err)
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return err
		}
	}
	if _, err := page.ElementX(planTableXPath); err != nil {
		return fmt.Errorf("quality plan table did not load: %w", err)
	}
	return nil
}

// sessionCheck turns err into a SessionError when the page shows the
// unauthorised screen.
func (b *Browser) sessionCheck(page *rod.Page, op string, err error) error {
	if err == nil || page == nil {
		return err
	}
	info, infoErr := page.Info()
	if infoErr == nil && strings.EqualFold(info.Title, unauthorisedTitle) {
		return &traversal.SessionError{Op: op, Err: err}
	}
	return err
}

// timedOut reports whether err came from an element wait running out.
func timedOut(err error) bool {
	var notFound *rod.ElementNotFoundError
	return errors.Is(err, context.DeadlineExceeded) || errors.As(err, &notFound)
}

func (b *Browser) hideSupportWidget(page *rod.Page) {
	_, _ = page.Eval(`(cls) => document.querySelectorAll("." + cls).forEach(el => el.style.display = "none")`, supportWidgetClass)
}
