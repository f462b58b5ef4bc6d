package scraper

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"

	"permit-watch/internal/domain/entity"
	"permit-watch/internal/resilience/circuitbreaker"
	"permit-watch/internal/resilience/retry"
)

// PortalForm names the fields of the portal login form.
type PortalForm struct {
	LoginField    string
	PasswordField string
	DigestField   string
}

// DefaultPortalForm returns the field names the portal login form uses.
func DefaultPortalForm() PortalForm {
	return PortalForm{
		LoginField:    "login",
		PasswordField: "password",
		DigestField:   "password_md5",
	}
}

// PortalOptions configures the document portal extractor.
type PortalOptions struct {
	LoginURL  string
	SearchURL string
	Login     string
	Password  string
	Form      PortalForm
	Charset   string
	Retry     retry.Config
}

// PortalExtractor logs in with a fresh cookie session on every extraction
// and reads the fixed search results page.
type PortalExtractor struct {
	base           *http.Client
	opts           PortalOptions
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewPortalExtractor(base *http.Client, opts PortalOptions) *PortalExtractor {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.PortalConfig()
	}
	def := DefaultPortalForm()
	if opts.Form.LoginField == "" {
		opts.Form.LoginField = def.LoginField
	}
	if opts.Form.PasswordField == "" {
		opts.Form.PasswordField = def.PasswordField
	}
	if opts.Form.DigestField == "" {
		opts.Form.DigestField = def.DigestField
	}
	return &PortalExtractor{
		base:           base,
		opts:           opts,
		circuitBreaker: circuitbreaker.New(circuitbreaker.PortalConfig()),
	}
}

func (p *PortalExtractor) Name() string { return string(entity.KindPortal) }

// PasswordDigest is the lowercase hex MD5 of password, as the portal's
// login form submits it next to the plain password.
func PasswordDigest(password string) string {
	// #nosec G401 -- dictated by the upstream login protocol.
	sum := md5.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Extract logs in and scrapes the search results. A failed login aborts
// only this extraction and is reported as entity.ErrAuth.
func (p *PortalExtractor) Extract(ctx context.Context) ([]*entity.PortalRecord, error) {
	ctx, span := tracer.Start(ctx, "scraper.portal.Extract")
	defer span.End()

	if p.opts.Login == "" || p.opts.Password == "" {
		err := fmt.Errorf("%w: portal credentials are not configured", entity.ErrAuth)
		span.SetStatus(codes.Error, "missing credentials")
		return nil, err
	}

	records, err := resilientCall(ctx, p.circuitBreaker, p.opts.Retry, p.opts.SearchURL, func() ([]*entity.PortalRecord, error) {
		client, err := p.newSession()
		if err != nil {
			return nil, err
		}
		if err := p.login(ctx, client); err != nil {
			return nil, err
		}
		return p.search(ctx, client)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "portal extraction failed")
		return nil, err
	}
	return records, nil
}

// newSession returns a resty client with its own cookie jar that shares
// the transport and timeout of the base client.
func (p *PortalExtractor) newSession() (*resty.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	httpClient := &http.Client{
		Transport: p.base.Transport,
		Timeout:   p.base.Timeout,
		Jar:       jar,
	}
	client := resty.NewWithClient(httpClient)
	client.SetHeader("User-Agent", userAgent)
	return client, nil
}

func (p *PortalExtractor) login(ctx context.Context, client *resty.Client) error {
	ctx, span := tracer.Start(ctx, "scraper.portal.login")
	defer span.End()

	res, err := client.R().SetContext(ctx).Get(p.opts.LoginURL)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: login page: %w", entity.ErrAuth, err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("%w: %w", entity.ErrAuth, statusError(res, "login page"))
	}
	loginDoc, err := p.parse(res.Body())
	if err != nil {
		return err
	}

	form, action := p.loginForm(loginDoc)

	res, err = client.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(action)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: login submit: %w", entity.ErrAuth, err)
	}
	if res.StatusCode() >= 500 {
		return fmt.Errorf("%w: %w", entity.ErrAuth, statusError(res, "login submit"))
	}
	if !res.IsSuccess() {
		span.SetStatus(codes.Error, "login rejected")
		return fmt.Errorf("%w: login submit returned %s", entity.ErrAuth, res.Status())
	}

	doc, err := p.parse(res.Body())
	if err != nil {
		return err
	}
	if hasLoginForm(doc) {
		span.SetStatus(codes.Error, "login rejected")
		return fmt.Errorf("%w: portal rejected the credentials", entity.ErrAuth)
	}
	return nil
}

// loginForm builds the POST body from the login page: hidden inputs of the
// form are carried over, then credentials and the password digest are set.
func (p *PortalExtractor) loginForm(doc *goquery.Document) (url.Values, string) {
	form := url.Values{}
	action := p.opts.LoginURL

	sel := doc.Find("input[type=password]").First().Closest("form")
	if sel.Length() > 0 {
		sel.Find("input[type=hidden]").Each(func(_ int, in *goquery.Selection) {
			if name, ok := in.Attr("name"); ok && name != "" {
				form.Set(name, in.AttrOr("value", ""))
			}
		})
		if a := strings.TrimSpace(sel.AttrOr("action", "")); a != "" {
			if base, err := url.Parse(p.opts.LoginURL); err == nil {
				if ref, err := base.Parse(a); err == nil {
					action = ref.String()
				}
			}
		}
	}

	form.Set(p.opts.Form.LoginField, p.opts.Login)
	form.Set(p.opts.Form.PasswordField, p.opts.Password)
	form.Set(p.opts.Form.DigestField, PasswordDigest(p.opts.Password))
	return form, action
}

func (p *PortalExtractor) search(ctx context.Context, client *resty.Client) ([]*entity.PortalRecord, error) {
	ctx, span := tracer.Start(ctx, "scraper.portal.search")
	defer span.End()

	res, err := client.R().SetContext(ctx).Get(p.opts.SearchURL)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("search: %w", err)
	}
	if !res.IsSuccess() {
		return nil, statusError(res, "search")
	}
	doc, err := p.parse(res.Body())
	if err != nil {
		return nil, err
	}
	// Session expired between login and search.
	if hasLoginForm(doc) {
		return nil, fmt.Errorf("%w: search redirected to login", entity.ErrAuth)
	}
	return ParsePortal(doc)
}

func (p *PortalExtractor) parse(body []byte) (*goquery.Document, error) {
	if len(body) > maxBodySize {
		body = body[:maxBodySize]
	}
	body, err := decodeCharset(body, p.opts.Charset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrParse, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse HTML: %w", entity.ErrParse, err)
	}
	return doc, nil
}

func hasLoginForm(doc *goquery.Document) bool {
	return doc.Find("form input[type=password]").Length() > 0
}

// ParsePortal extracts one record per result checkbox. The checkbox value
// is the id; the table cells following the checkbox's cell supply
// entity.PortalFields by position and must match them in number.
func ParsePortal(doc *goquery.Document) ([]*entity.PortalRecord, error) {
	var (
		records []*entity.PortalRecord
		rowErr  error
	)
	doc.Find("input[type=checkbox]").EachWithBreak(func(i int, box *goquery.Selection) bool {
		id := strings.TrimSpace(box.AttrOr("value", ""))
		if id == "" || id == "on" {
			// select-all toggles carry no value
			return true
		}

		siblings := box.Closest("td").NextAll().Filter("td")
		if siblings.Length() != len(entity.PortalFields) {
			rowErr = fmt.Errorf("%w: portal result %s has %d fields, want %d",
				entity.ErrParse, id, siblings.Length(), len(entity.PortalFields))
			return false
		}

		cells := make([]string, 0, len(entity.PortalFields))
		siblings.Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, cleanText(td.Text()))
		})
		records = append(records, entity.NewPortalRecord(id, cells))
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	return records, nil
}

func statusError(res *resty.Response, step string) *retry.HTTPError {
	return &retry.HTTPError{
		StatusCode: res.StatusCode(),
		Message:    step + ": " + res.Status(),
		RetryAfter: retry.ParseRetryAfter(res.Header().Get("Retry-After")),
	}
}
