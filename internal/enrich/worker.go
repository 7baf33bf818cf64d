// Package enrich runs contact research for stored startups: LinkedIn slug
// verification, email harvesting from a company's own pages, and phone
// extraction, executed on a bounded worker pool with per-step failure
// isolation.
package enrich

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agscout/agscout/internal/extract"
	"github.com/agscout/agscout/internal/fetch"
	"github.com/agscout/agscout/internal/model"
	"github.com/agscout/agscout/internal/store"
)

const (
	defaultConcurrency = 3
	defaultMaxAge      = 7 * 24 * time.Hour
	defaultMaxEmails   = 10
	defaultMaxPhones   = 3

	// pageFetchTimeout bounds each contact-page fetch on its own, so one slow
	// page cannot stall the whole run.
	pageFetchTimeout = 25 * time.Second
)

// contactPaths are the site paths probed after the homepage. Two is enough;
// contact details that exist at all are on one of these.
var contactPaths = []string{"/contact", "/about"}

// genericMailboxes are the role addresses synthesized against a company's
// domain when page scraping turns up nothing.
var genericMailboxes = []string{"info", "contact", "hello", "support", "sales", "team"}

// Options configures the Worker.
type Options struct {
	Concurrency int           // parallel enrichment runs, default 3
	MaxAge      time.Duration // freshness window for cached contacts, default 7 days
	MaxEmails   int           // default 10
	MaxPhones   int           // default 3
}

// Request asks for one startup's contacts. When no Include flag is set, all
// three research steps run. Priority orders batch dispatch, higher first.
type Request struct {
	StartupID       string
	Priority        int
	IncludeLinkedIn bool
	IncludeEmail    bool
	IncludePhone    bool
}

func (r Request) normalized() Request {
	if !r.IncludeLinkedIn && !r.IncludeEmail && !r.IncludePhone {
		r.IncludeLinkedIn = true
		r.IncludeEmail = true
		r.IncludePhone = true
	}
	return r
}

// Outcome is the result of one enrichment run. Job is nil when fresh cached
// contacts short-circuited the run.
type Outcome struct {
	Startup  *model.StoredStartup
	Job      *model.ContactResearchJob
	Findings *model.ContactFindings
}

// Worker performs contact research against the live web and records the
// outcome in the store. Safe for concurrent use.
type Worker struct {
	client *fetch.Client
	store  store.Store
	opts   Options
}

// NewWorker creates a Worker. Zero-value options get defaults.
func NewWorker(client *fetch.Client, st store.Store, opts Options) *Worker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultMaxAge
	}
	if opts.MaxEmails <= 0 {
		opts.MaxEmails = defaultMaxEmails
	}
	if opts.MaxPhones <= 0 {
		opts.MaxPhones = defaultMaxPhones
	}
	return &Worker{client: client, store: st, opts: opts}
}

// Enrich researches contacts for one startup.
//
// Fresh cached contacts (updated within MaxAge) short-circuit the run: the
// cached info comes back with FromCache set and no job row is created.
// Otherwise a job row is created in processing state and receives exactly one
// terminal transition, completed when at least one step produced something or
// ran clean, failed when every step errored or the context died.
func (w *Worker) Enrich(ctx context.Context, req Request) (*Outcome, error) {
	startup, job, cached, err := w.prepare(ctx, &req)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}
	return w.execute(ctx, job, startup, req)
}

// EnrichAsync creates the job row and runs research in the background,
// detached from the caller's context. Fresh cached contacts still
// short-circuit synchronously.
func (w *Worker) EnrichAsync(ctx context.Context, req Request) (*Outcome, error) {
	startup, job, cached, err := w.prepare(ctx, &req)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	go func() {
		if _, err := w.execute(context.WithoutCancel(ctx), job, startup, req); err != nil {
			zap.L().Warn("background enrichment failed",
				zap.String("startup_id", startup.ID), zap.Error(err))
		}
	}()

	return &Outcome{Startup: startup, Job: job}, nil
}

// prepare loads the startup, applies the freshness short-circuit, and creates
// the job row. A non-nil cached outcome means no job was created.
func (w *Worker) prepare(ctx context.Context, req *Request) (*model.StoredStartup, *model.ContactResearchJob, *Outcome, error) {
	*req = req.normalized()

	startup, err := w.store.GetStartup(ctx, req.StartupID)
	if err != nil {
		return nil, nil, nil, eris.Wrapf(err, "enrich: load startup %s", req.StartupID)
	}

	if startup.ContactInfo.Fresh(w.opts.MaxAge) {
		zap.L().Debug("contact info fresh, skipping research",
			zap.String("startup_id", startup.ID),
			zap.Timep("last_updated", startup.ContactInfo.LastUpdated))
		return startup, nil, &Outcome{
			Startup: startup,
			Findings: &model.ContactFindings{
				Emails:           startup.ContactInfo.Emails,
				Phones:           startup.ContactInfo.Phones,
				LinkedInURL:      startup.ContactInfo.LinkedInURL,
				LinkedInVerified: startup.ContactInfo.LinkedInVerified,
				FromCache:        true,
			},
		}, nil
	}

	job, err := w.store.CreateContactJob(ctx, startup.UserID, startup)
	if err != nil {
		return nil, nil, nil, eris.Wrap(err, "enrich: create contact job")
	}
	return startup, job, nil, nil
}

// execute runs research for an already-created job and writes its single
// terminal transition.
func (w *Worker) execute(ctx context.Context, job *model.ContactResearchJob, startup *model.StoredStartup, req Request) (*Outcome, error) {
	findings, runErr := w.research(ctx, startup, req)
	if runErr != nil {
		w.failJob(ctx, job, runErr)
		return &Outcome{Startup: startup, Job: job}, runErr
	}

	now := time.Now().UTC()
	ci := &model.ContactInfo{
		Emails:           findings.Emails,
		Phones:           findings.Phones,
		LinkedInURL:      findings.LinkedInURL,
		LinkedInVerified: findings.LinkedInVerified,
		LastUpdated:      &now,
	}
	if err := w.store.UpdateStartupContact(ctx, startup.ID, ci); err != nil {
		err = eris.Wrapf(err, "enrich: update startup %s contacts", startup.ID)
		w.failJob(ctx, job, err)
		return nil, err
	}
	startup.ContactInfo = ci

	if err := w.store.CompleteContactJob(ctx, job.ID, findings); err != nil {
		err = eris.Wrapf(err, "enrich: complete contact job %s", job.ID)
		w.failJob(ctx, job, err)
		return nil, err
	}
	job.Status = model.JobStatusCompleted
	job.Result = findings

	zap.L().Info("contact research complete",
		zap.String("startup_id", startup.ID),
		zap.Int("emails", len(findings.Emails)),
		zap.Int("phones", len(findings.Phones)),
		zap.Bool("linkedin_verified", findings.LinkedInVerified))

	return &Outcome{Startup: startup, Job: job, Findings: findings}, nil
}

// failJob moves the job to failed, best effort. The job row outlives the
// context that cancelled the run, so the write goes through a detached
// context. Every error path in execute ends here: a job that entered
// processing must leave it.
func (w *Worker) failJob(ctx context.Context, job *model.ContactResearchJob, cause error) {
	base := context.WithoutCancel(ctx)
	if failErr := w.store.FailContactJob(base, job.ID, cause.Error()); failErr != nil {
		zap.L().Error("record contact job failure",
			zap.String("job_id", job.ID), zap.Error(failErr))
	}
	job.Status = model.JobStatusFailed
	job.Error = cause.Error()
}

// EnrichMany runs enrichment for several startups on a bounded pool, starting
// higher-priority requests first. Failed runs are recorded in their own job
// rows and do not stop the others. Outcomes line up with reqs by index.
func (w *Worker) EnrichMany(ctx context.Context, reqs []Request) []*Outcome {
	outcomes := make([]*Outcome, len(reqs))

	order := make([]int, len(reqs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return reqs[order[a]].Priority > reqs[order[b]].Priority
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Concurrency)
	for _, i := range order {
		i := i
		req := reqs[i]
		g.Go(func() error {
			out, err := w.Enrich(gctx, req)
			if err != nil {
				zap.L().Warn("enrichment failed",
					zap.String("startup_id", req.StartupID), zap.Error(err))
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// research runs the requested steps sequentially. A step that errors is
// recorded in StepErrors and the next step still runs; research fails as a
// whole only when every requested step errored or the context died.
func (w *Worker) research(ctx context.Context, startup *model.StoredStartup, req Request) (*model.ContactFindings, error) {
	findings := &model.ContactFindings{}

	// Pages fetched for the email step also feed LinkedIn and phone
	// extraction, so scraping happens once up front.
	var pages []string
	needPages := req.IncludeEmail || req.IncludePhone || req.IncludeLinkedIn
	var scrapeErr error
	if needPages && startup.Website != "" {
		pages, scrapeErr = w.scrapeSite(ctx, startup.Website)
		if scrapeErr != nil {
			findings.StepErrors = append(findings.StepErrors, fmt.Sprintf("scrape: %v", scrapeErr))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "enrich: research cancelled")
	}

	steps := 0
	failed := 0

	if req.IncludeLinkedIn {
		steps++
		if err := w.linkedinStep(ctx, startup, pages, findings); err != nil {
			failed++
			findings.StepErrors = append(findings.StepErrors, fmt.Sprintf("linkedin: %v", err))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "enrich: research cancelled")
	}

	if req.IncludeEmail {
		steps++
		if err := w.emailStep(startup, pages, findings); err != nil {
			failed++
			findings.StepErrors = append(findings.StepErrors, fmt.Sprintf("email: %v", err))
		}
	}

	if req.IncludePhone {
		steps++
		if err := w.phoneStep(pages, findings); err != nil {
			failed++
			findings.StepErrors = append(findings.StepErrors, fmt.Sprintf("phone: %v", err))
		}
	}

	if steps > 0 && failed == steps && noFindings(findings) {
		return nil, eris.Errorf("enrich: all %d research steps failed: %s",
			steps, strings.Join(findings.StepErrors, "; "))
	}
	return findings, nil
}

// scrapeSite fetches the homepage plus the contact paths, returning the HTML
// of every page that came back. Individual page failures are tolerated as
// long as at least one page loads.
func (w *Worker) scrapeSite(ctx context.Context, website string) ([]string, error) {
	base, err := url.Parse(website)
	if err != nil || base.Host == "" {
		return nil, eris.Errorf("invalid website %q", website)
	}

	targets := make([]string, 0, 1+len(contactPaths))
	targets = append(targets, website)
	for _, p := range contactPaths {
		u := *base
		u.Path = p
		u.RawQuery = ""
		targets = append(targets, u.String())
	}

	var pages []string
	var lastErr error
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		fetchCtx, cancel := context.WithTimeout(ctx, pageFetchTimeout)
		page, err := w.client.Get(fetchCtx, t)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		pages = append(pages, page.HTML)
	}
	if len(pages) == 0 {
		return nil, eris.Wrapf(lastErr, "no page of %s reachable", base.Host)
	}
	return pages, nil
}

// linkedinStep finds a company profile. A URL already on the company's own
// pages wins; otherwise a slug derived from the name is probed with a HEAD
// request. Only a 200 marks the profile verified.
func (w *Worker) linkedinStep(ctx context.Context, startup *model.StoredStartup, pages []string, findings *model.ContactFindings) error {
	for _, html := range pages {
		if urls := extract.LinkedInURLs(html); len(urls) > 0 {
			findings.LinkedInURL = urls[0]
			findings.LinkedInVerified = true
			return nil
		}
	}

	slug := companySlug(startup.Name)
	if slug == "" {
		return eris.Errorf("no usable slug from name %q", startup.Name)
	}
	candidate := "https://www.linkedin.com/company/" + slug

	code, err := w.client.Head(ctx, candidate)
	if err != nil {
		// Keep the guess as a lead; it just is not verified.
		findings.LinkedInURL = candidate
		return eris.Wrap(err, "verify slug")
	}
	findings.LinkedInURL = candidate
	findings.LinkedInVerified = code == 200
	return nil
}

// emailStep harvests addresses from the scraped pages and merges in the
// synthesized role mailboxes at the company's domain. Scraped addresses rank
// first, so the cap never displaces a real find for a guess.
func (w *Worker) emailStep(startup *model.StoredStartup, pages []string, findings *model.ContactFindings) error {
	seen := make(map[string]struct{})
	var emails []string
	add := func(e string) {
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		emails = append(emails, e)
	}

	for _, html := range pages {
		for _, e := range extract.Emails(html) {
			add(e)
		}
	}

	domain := websiteDomain(startup.Website)
	if domain == "" && len(emails) == 0 {
		return eris.Errorf("no emails on pages and no domain to synthesize from")
	}
	if domain != "" {
		for _, box := range genericMailboxes {
			add(box + "@" + domain)
		}
	}

	if len(emails) > w.opts.MaxEmails {
		emails = emails[:w.opts.MaxEmails]
	}
	findings.Emails = emails
	return nil
}

func (w *Worker) phoneStep(pages []string, findings *model.ContactFindings) error {
	seen := make(map[string]struct{})
	var phones []string
	for _, html := range pages {
		for _, p := range extract.Phones(html) {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			phones = append(phones, p)
		}
	}
	if len(phones) > w.opts.MaxPhones {
		phones = phones[:w.opts.MaxPhones]
	}
	findings.Phones = phones
	return nil
}

func noFindings(f *model.ContactFindings) bool {
	return len(f.Emails) == 0 && len(f.Phones) == 0 && f.LinkedInURL == ""
}

// companySlug turns a company name into a linkedin.com/company/ path segment:
// lower-cased, runs of non-alphanumerics collapsed to single hyphens.
func companySlug(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// websiteDomain extracts the bare host from a website URL, stripping www.
func websiteDomain(website string) string {
	if website == "" {
		return ""
	}
	u, err := url.Parse(website)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}
