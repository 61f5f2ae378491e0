package ussd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/services"
	"golang.org/x/exp/slog"
)

const (
	msgServiceError = "An error occurred. Please try again later."
	msgInvalidPIN   = "Invalid PIN. Your PIN must be exactly 4 digits. Please dial again to register."
)

// onboarding registers an unknown caller: name, business name, PIN.
type onboarding struct {
	m     *Machine
	phone string
}

func (o *onboarding) name() string { return "onboarding" }

func (o *onboarding) replay(ctx context.Context, steps Steps) Response {
	switch steps.Level() {
	case 0:
		return con(fmt.Sprintf("Welcome to %s!\nLet's register your business.\nEnter your full name:", o.m.opts.ServiceName))
	case 1:
		return con("Enter your business name:")
	case 2:
		return con("Create a 4-digit PIN:")
	}

	pin := steps.At(2)
	if !services.ValidPIN(pin) {
		return end(msgInvalidPIN)
	}

	vendor, err := o.m.vendors.Onboard(ctx, o.phone, steps.At(0), steps.At(1), pin)
	if errors.Is(err, services.ErrVendorExists) {
		// registered by a concurrent retry of this same request
		existing, findErr := o.m.vendors.FindByPhone(ctx, o.phone)
		if findErr == nil && isOnboardingReplay(o.m, existing, steps) {
			return end(registeredText(o.m, existing))
		}
	}
	if err != nil {
		slog.Error("USSD onboarding failed", "error", err)
		return end("Registration failed. Please try again later.")
	}
	return end(registeredText(o.m, vendor))
}

func registeredText(m *Machine, v *models.Vendor) string {
	return fmt.Sprintf("Registration successful! Welcome to %s, %s. Dial again to open your dashboard.",
		m.opts.ServiceName, v.BusinessName)
}

// isOnboardingReplay reports whether steps repeat the request that registered v.
func isOnboardingReplay(m *Machine, v *models.Vendor, steps Steps) bool {
	return steps.Level() >= 3 &&
		strings.TrimSpace(steps.At(0)) == v.OwnerName &&
		strings.TrimSpace(steps.At(1)) == v.BusinessName &&
		m.vendors.VerifyPIN(v, steps.At(2))
}

// pinSetup asks a vendor registered without a PIN to create one, then opens the main menu.
type pinSetup struct {
	m         *Machine
	vendor    *models.Vendor
	sessionID string
}

func (p *pinSetup) name() string { return "pin_setup" }

func (p *pinSetup) replay(ctx context.Context, steps Steps) Response {
	if steps.Level() == 0 {
		return con(fmt.Sprintf("Welcome to %s, %s.\nCreate a 4-digit PIN to secure your dashboard:",
			p.m.opts.ServiceName, p.vendor.OwnerName))
	}

	pin := steps.At(0)
	if !services.ValidPIN(pin) {
		return end("Invalid PIN. Your PIN must be exactly 4 digits.")
	}
	if err := p.m.vendors.SetPIN(ctx, p.vendor, pin); err != nil {
		slog.Error("USSD PIN setup failed", "error", err, "vendorId", p.vendor.ID.Hex())
		return end(msgServiceError)
	}

	// the vendor now has a PIN, so the rest of the session is a dashboard session
	d := &dashboard{m: p.m, vendor: p.vendor, sessionID: p.sessionID}
	return d.replay(ctx, steps)
}
