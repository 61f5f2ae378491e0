package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kulapay/kulapay-backend/internal/config"
	"github.com/kulapay/kulapay-backend/internal/models"
	mongorepo "github.com/kulapay/kulapay-backend/internal/repositories/mongodb"
	"github.com/kulapay/kulapay-backend/internal/services"
	"github.com/kulapay/kulapay-backend/pkg/mongodb"
	"github.com/spf13/cobra"
)

// vendorCreator is the part of the vendor service the CLI needs.
type vendorCreator interface {
	Create(ctx context.Context, phone, ownerName, businessName, pin string) (*models.Vendor, error)
}

func vendorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendor",
		Short: "Manage vendors",
	}
	cmd.AddCommand(vendorCreateCmd())
	cmd.AddCommand(vendorImportCmd())
	return cmd
}

func vendorCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [phone]",
		Short: "Register a vendor. Without --pin the vendor sets a PIN on first dial",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			business, _ := cmd.Flags().GetString("business")
			pin, _ := cmd.Flags().GetString("pin")

			return withVendorService(cmd, func(ctx context.Context, vendors vendorCreator) error {
				v, err := vendors.Create(ctx, args[0], owner, business, pin)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created vendor %s (%s)\n", v.BusinessName, v.ID.Hex())
				return nil
			})
		},
	}
	cmd.Flags().StringP("owner", "o", "", "Owner name")
	cmd.Flags().StringP("business", "b", "", "Business name")
	cmd.Flags().String("pin", "", "Initial 4-digit PIN")
	_ = cmd.MarkFlagRequired("business")
	return cmd
}

func vendorImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [csv-file]",
		Short: "Import vendors from a CSV file: phoneNumber,ownerName,businessName[,pin]",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open CSV file: %w", err)
			}
			defer file.Close()

			return withVendorService(cmd, func(ctx context.Context, vendors vendorCreator) error {
				res, err := importVendors(ctx, file, vendors, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d vendors (%d already registered, %d skipped)\n",
					res.Created, res.Existing, res.Skipped)
				return nil
			})
		},
	}
}

type importResult struct {
	Created  int
	Existing int
	Skipped  int
}

// importVendors reads CSV rows after the header and registers each vendor. Bad rows are reported
// to warn and skipped.
func importVendors(ctx context.Context, r io.Reader, vendors vendorCreator, warn io.Writer) (importResult, error) {
	var res importResult

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return res, fmt.Errorf("failed to parse CSV file: %w", err)
	}
	if len(records) < 2 {
		return res, errors.New("CSV file is empty or has only a header")
	}

	for i, record := range records[1:] {
		line := i + 2
		if len(record) < 3 {
			fmt.Fprintf(warn, "line %d: expected at least 3 fields, skipping\n", line)
			res.Skipped++
			continue
		}
		var pin string
		if len(record) > 3 {
			pin = strings.TrimSpace(record[3])
		}

		_, err := vendors.Create(ctx, record[0], record[1], record[2], pin)
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, services.ErrVendorExists):
			res.Existing++
		case services.IsValidation(err):
			fmt.Fprintf(warn, "line %d: %v, skipping\n", line, err)
			res.Skipped++
		default:
			return res, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return res, nil
}

// withVendorService connects to the configured MongoDB ledger and runs fn.
func withVendorService(cmd *cobra.Command, fn func(context.Context, vendorCreator) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != "mongodb" {
		return fmt.Errorf("vendor commands need the mongodb storage driver, got %q", cfg.Storage.Driver)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := mongodb.NewClient(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDB.Database)
	if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
		return err
	}
	return fn(ctx, services.NewVendorService(mongorepo.NewVendorRepository(db), cfg.Security.PINCost))
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		return config.Load()
	}
	return config.Load(dir)
}
