package ussd

import (
	"context"
	"errors"

	"github.com/kulapay/kulapay-backend/internal/metrics"
	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/services"
	"github.com/kulapay/kulapay-backend/pkg/smsgateway"
	"golang.org/x/exp/slog"
)

// Request is one USSD gateway callback.
type Request struct {
	SessionID   string
	ServiceCode string
	PhoneNumber string
	Text        string
}

// Response is the next screen. Continue keeps the session open.
type Response struct {
	Continue bool
	Text     string
}

// String renders the response in gateway form.
func (r Response) String() string {
	if r.Continue {
		return "CON " + r.Text
	}
	return "END " + r.Text
}

func con(text string) Response { return Response{Continue: true, Text: text} }
func end(text string) Response { return Response{Text: text} }

// Vendors is the vendor registry the machine reads and, at completion steps, writes.
type Vendors interface {
	FindByPhone(ctx context.Context, phone string) (*models.Vendor, error)
	Onboard(ctx context.Context, phone, ownerName, businessName, pin string) (*models.Vendor, error)
	VerifyPIN(vendor *models.Vendor, pin string) bool
	SetPIN(ctx context.Context, vendor *models.Vendor, pin string) error
}

// Sales records a confirmed sale.
type Sales interface {
	RecordSale(ctx context.Context, req services.SaleRequest) (*services.SaleResult, error)
}

// Stats summarizes a vendor's sales for the current day.
type Stats interface {
	Today(ctx context.Context, vendor *models.Vendor) (models.Summary, error)
}

// Options configures menu text and navigation.
type Options struct {
	ServiceName    string
	BackToken      string
	HomeToken      string
	MinPhoneLength int
	Currency       string
}

// DefaultOptions returns the standard menu settings.
func DefaultOptions() Options {
	return Options{
		ServiceName:    "KulaPay",
		BackToken:      "0",
		HomeToken:      "00",
		MinPhoneLength: 10,
		Currency:       "KES",
	}
}

// Machine replays a session on every request. It keeps no session state: the response is a
// function of the decoded steps and the stored vendor, and the only writes happen at the final
// step of onboarding, PIN setup or a confirmed sale.
type Machine struct {
	vendors Vendors
	sales   Sales
	stats   Stats
	opts    Options
	metrics *metrics.Collector
}

// NewMachine creates a new Machine
func NewMachine(vendors Vendors, sales Sales, stats Stats, opts Options, collector *metrics.Collector) *Machine {
	def := DefaultOptions()
	if opts.ServiceName == "" {
		opts.ServiceName = def.ServiceName
	}
	if opts.BackToken == "" {
		opts.BackToken = def.BackToken
	}
	if opts.HomeToken == "" {
		opts.HomeToken = def.HomeToken
	}
	if opts.MinPhoneLength <= 0 {
		opts.MinPhoneLength = def.MinPhoneLength
	}
	if opts.Currency == "" {
		opts.Currency = def.Currency
	}
	return &Machine{vendors: vendors, sales: sales, stats: stats, opts: opts, metrics: collector}
}

// flow is one variant of the session, selected once per request from the caller's vendor record.
type flow interface {
	name() string
	replay(ctx context.Context, steps Steps) Response
}

// Handle decodes req and produces the next screen.
func (m *Machine) Handle(ctx context.Context, req Request) Response {
	steps := Decode(req.Text)

	f, err := m.selectFlow(ctx, req)
	if err != nil {
		slog.Error("USSD vendor lookup failed", "error", err, "sessionId", req.SessionID,
			"phone", smsgateway.MaskPhone(req.PhoneNumber))
		return end(msgServiceError)
	}

	resp := f.replay(ctx, steps)
	m.metrics.USSDResponse(f.name(), resp.Continue)
	slog.Debug("USSD step", "sessionId", req.SessionID, "flow", f.name(), "level", steps.Level(),
		"continue", resp.Continue)
	return resp
}

func (m *Machine) selectFlow(ctx context.Context, req Request) (flow, error) {
	vendor, err := m.vendors.FindByPhone(ctx, req.PhoneNumber)
	switch {
	case errors.Is(err, services.ErrVendorNotFound):
		return &onboarding{m: m, phone: req.PhoneNumber}, nil
	case err != nil:
		return nil, err
	case !vendor.HasPIN():
		return &pinSetup{m: m, vendor: vendor, sessionID: req.SessionID}, nil
	default:
		return &dashboard{m: m, vendor: vendor, sessionID: req.SessionID}, nil
	}
}
