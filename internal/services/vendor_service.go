package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/repositories"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

// PINLength is the number of digits in a vendor PIN.
const PINLength = 4

// VendorService handles vendor registration and PIN checks
type VendorService struct {
	repo    repositories.VendorRepository
	pinCost int
}

// NewVendorService creates a new VendorService. pinCost is the bcrypt cost; zero means bcrypt.DefaultCost.
func NewVendorService(repo repositories.VendorRepository, pinCost int) *VendorService {
	if pinCost == 0 {
		pinCost = bcrypt.DefaultCost
	}
	return &VendorService{repo: repo, pinCost: pinCost}
}

// ValidPIN reports whether pin is exactly four ASCII digits.
func ValidPIN(pin string) bool {
	if len(pin) != PINLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

// Onboard registers the vendor calling from phone. The PIN is stored as a bcrypt hash.
func (s *VendorService) Onboard(ctx context.Context, phone, ownerName, businessName, pin string) (*models.Vendor, error) {
	if !ValidPIN(pin) {
		return nil, &ValidationError{Field: "pin", Message: "PIN must be exactly 4 digits"}
	}
	return s.create(ctx, phone, ownerName, businessName, pin)
}

// Create registers a vendor from the admin surface. An empty pin leaves PIN setup to the first USSD dial.
func (s *VendorService) Create(ctx context.Context, phone, ownerName, businessName, pin string) (*models.Vendor, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, &ValidationError{Field: "phoneNumber", Message: "phone number is required"}
	}
	if pin != "" && !ValidPIN(pin) {
		return nil, &ValidationError{Field: "pin", Message: "PIN must be exactly 4 digits"}
	}
	return s.create(ctx, phone, ownerName, businessName, pin)
}

func (s *VendorService) create(ctx context.Context, phone, ownerName, businessName, pin string) (*models.Vendor, error) {
	vendor := &models.Vendor{
		PhoneNumber:  strings.TrimSpace(phone),
		OwnerName:    strings.TrimSpace(ownerName),
		BusinessName: strings.TrimSpace(businessName),
	}
	if pin != "" {
		hash, err := s.hashPIN(pin)
		if err != nil {
			return nil, err
		}
		vendor.PINHash = hash
	}

	if err := s.repo.Create(ctx, vendor); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrVendorExists
		}
		return nil, fmt.Errorf("failed to create vendor: %w", err)
	}
	slog.Info("Vendor registered", "vendorId", vendor.ID.Hex(), "business", vendor.BusinessName)
	return vendor, nil
}

// FindByPhone returns the vendor registered under phone, or ErrVendorNotFound.
func (s *VendorService) FindByPhone(ctx context.Context, phone string) (*models.Vendor, error) {
	vendor, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrVendorNotFound
		}
		return nil, fmt.Errorf("failed to look up vendor: %w", err)
	}
	return vendor, nil
}

// VerifyPIN compares pin with the vendor's stored hash.
func (s *VendorService) VerifyPIN(vendor *models.Vendor, pin string) bool {
	if vendor == nil || !vendor.HasPIN() || !ValidPIN(pin) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(vendor.PINHash), []byte(pin)) == nil
}

// SetPIN stores a new PIN for a vendor that has none yet.
func (s *VendorService) SetPIN(ctx context.Context, vendor *models.Vendor, pin string) error {
	if !ValidPIN(pin) {
		return &ValidationError{Field: "pin", Message: "PIN must be exactly 4 digits"}
	}
	hash, err := s.hashPIN(pin)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePIN(ctx, vendor.ID, hash); err != nil {
		return fmt.Errorf("failed to store PIN: %w", err)
	}
	vendor.PINHash = hash
	return nil
}

// List returns a page of vendors
func (s *VendorService) List(ctx context.Context, page, limit int) ([]*models.Vendor, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, (page-1)*limit, limit)
}

func (s *VendorService) hashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.pinCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash PIN: %w", err)
	}
	return string(hash), nil
}
