package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/batch"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/membership"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const ProcessorImportMemberships = "import_memberships"

// Import fields a CSV column can be mapped to.
const (
	ImportFieldEmail                 = "email"
	ImportFieldLevel                 = "level"
	ImportFieldStatus                = "status"
	ImportFieldCreatedDate           = "created_date"
	ImportFieldExpirationDate        = "expiration_date"
	ImportFieldAutoRenew             = "auto_renew"
	ImportFieldTimesBilled           = "times_billed"
	ImportFieldGateway               = "gateway"
	ImportFieldGatewayCustomerID     = "gateway_customer_id"
	ImportFieldGatewaySubscriptionID = "gateway_subscription_id"
)

// ImportOptions is the data stored on an import job.
type ImportOptions struct {
	File string `json:"file"`
	// Mapping maps an import field to the CSV header that holds it. Fields
	// without a mapping fall back to a header with the field's own name.
	Mapping map[string]string `json:"mapping"`
	// LevelID is used for rows without a level column.
	LevelID string `json:"level_id"`
	// Status is used for rows without a status column. Defaults to active.
	Status string `json:"status"`
}

// ImportProcessor creates users, customers and memberships from a CSV file.
type ImportProcessor struct {
	db          *gorm.DB
	memberships *MembershipService
	dir         string
	now         func() time.Time
}

// NewImportProcessor reads import files only from inside dir.
func NewImportProcessor(db *gorm.DB, memberships *MembershipService, dir string) *ImportProcessor {
	return &ImportProcessor{db: db, memberships: memberships, dir: dir, now: func() time.Time { return time.Now().UTC() }}
}

func (p *ImportProcessor) Name() string { return ProcessorImportMemberships }

func (p *ImportProcessor) Count(ctx context.Context, job *models.BatchJob) (int, error) {
	opts, err := p.options(job)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(opts.File)
	if err != nil {
		return 0, fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	r := newCSVReader(f)
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read csv header: %w", err)
	}
	count := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read csv row %d: %w", count+2, err)
		}
		count++
	}
	return count, nil
}

func (p *ImportProcessor) Execute(ctx context.Context, job *models.BatchJob, offset, limit int) (batch.Result, error) {
	opts, err := p.options(job)
	if err != nil {
		return batch.Result{}, err
	}
	f, err := os.Open(opts.File)
	if err != nil {
		return batch.Result{}, fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	r := newCSVReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return batch.Result{Done: true}, nil
	}
	if err != nil {
		return batch.Result{}, fmt.Errorf("failed to read csv header: %w", err)
	}
	columns := resolveColumns(header, opts.Mapping)
	if _, ok := columns[ImportFieldEmail]; !ok {
		return batch.Result{}, errors.New("import file has no email column")
	}

	for i := 0; i < offset; i++ {
		if _, err := r.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return batch.Result{Done: true}, nil
			}
			return batch.Result{}, err
		}
	}

	var res batch.Result
	for i := 0; i < limit; i++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			res.Done = true
			return res, nil
		}
		// The page is retried from its first row, so nothing in it counts yet.
		if err != nil {
			return batch.Result{}, err
		}

		line := offset + i + 2
		row := importRow{values: record, columns: columns}
		if err := p.importRow(ctx, opts, row); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", line, err))
			continue
		}
		res.Processed++
	}

	if _, err := r.Read(); errors.Is(err, io.EOF) {
		res.Done = true
	}
	return res, nil
}

func (p *ImportProcessor) options(job *models.BatchJob) (*ImportOptions, error) {
	var opts ImportOptions
	if err := batch.DecodeData(job, &opts); err != nil {
		return nil, fmt.Errorf("invalid import options: %w", err)
	}
	if opts.File == "" {
		return nil, errors.New("import options have no file")
	}
	if !insideDir(p.dir, opts.File) {
		return nil, fmt.Errorf("%w: import file %q is outside the import directory", ErrInvalidInput, opts.File)
	}
	return &opts, nil
}

func insideDir(dir, file string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absFile, err := filepath.Abs(file)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absFile)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

type importRow struct {
	values  []string
	columns map[string]int
}

func (r importRow) get(field string) string {
	idx, ok := r.columns[field]
	if !ok || idx >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[idx])
}

func (p *ImportProcessor) importRow(ctx context.Context, opts *ImportOptions, row importRow) error {
	email := normalizeEmail(row.get(ImportFieldEmail))
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", email)
	}

	statusRaw := lo.CoalesceOrEmpty(row.get(ImportFieldStatus), opts.Status, string(membership.StatusActive))
	status, err := membership.ParseStatus(statusRaw)
	if err != nil {
		return err
	}

	now := p.now()
	created, err := parseImportDate(row.get(ImportFieldCreatedDate))
	if err != nil {
		return fmt.Errorf("invalid created_date: %w", err)
	}
	if created == nil {
		created = &now
	}
	expiration, err := parseImportDate(row.get(ImportFieldExpirationDate))
	if err != nil {
		return fmt.Errorf("invalid expiration_date: %w", err)
	}

	timesBilled := 0
	if raw := row.get(ImportFieldTimesBilled); raw != "" {
		if timesBilled, err = strconv.Atoi(raw); err != nil || timesBilled < 0 {
			return fmt.Errorf("invalid times_billed %q", raw)
		}
	}
	autoRenew, _ := strconv.ParseBool(row.get(ImportFieldAutoRenew))

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		level, err := p.resolveLevel(tx, row.get(ImportFieldLevel), opts.LevelID)
		if err != nil {
			return err
		}
		customer, err := p.ensureCustomer(tx, email, now)
		if err != nil {
			return err
		}

		if expiration == nil && row.get(ImportFieldExpirationDate) == "" {
			expiration = membership.CalculateExpiration(level.Plan(), *created, membership.ExpirationOptions{})
		}

		var existing models.Membership
		err = tx.Preload("Level").
			Where("customer_id = ? AND level_id = ? AND status <> ?", customer.ID, level.ID, string(membership.StatusExpired)).
			First(&existing).Error
		switch {
		case err == nil:
			return p.updateExisting(tx, &existing, status, expiration)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		m := models.Membership{
			CustomerID:            customer.ID,
			LevelID:               level.ID,
			Status:                status,
			CreatedDate:           *created,
			ExpirationDate:        expiration,
			AutoRenew:             autoRenew,
			TimesBilled:           timesBilled,
			MaximumRenewals:       level.MaximumRenewals,
			InitialAmount:         level.Price + level.Fee,
			RecurringAmount:       level.Price,
			Gateway:               lo.CoalesceOrEmpty(row.get(ImportFieldGateway), gateway.Manual),
			GatewayCustomerID:     row.get(ImportFieldGatewayCustomerID),
			GatewaySubscriptionID: row.get(ImportFieldGatewaySubscriptionID),
			SignupMethod:          models.SignupMethodImported,
		}
		if status != membership.StatusPending {
			m.ActivatedDate = created
		}
		if status == membership.StatusCancelled {
			m.CancellationDate = &now
			m.AutoRenew = false
		}
		if m.ExpirationDate == nil && (status == membership.StatusCancelled || status == membership.StatusExpired) {
			m.ExpirationDate = &now
		}
		m.AppendNote(now, fmt.Sprintf("Membership imported with status %s.", status))
		return tx.Omit("Level").Create(&m).Error
	})
}

// updateExisting moves a membership that is already on the level to the
// imported status through the regular lifecycle.
func (p *ImportProcessor) updateExisting(tx *gorm.DB, m *models.Membership, status membership.Status, expiration *time.Time) error {
	if m.Status != status {
		var err error
		switch status {
		case membership.StatusActive:
			err = p.memberships.activate(tx, m, false)
		case membership.StatusCancelled:
			err = p.memberships.cancel(tx, m, "Updated by import.")
		case membership.StatusExpired:
			err = p.memberships.expire(tx, m, "Updated by import.")
		default:
			err = membership.Transition(m.Status, status)
		}
		if err != nil {
			return err
		}
	}
	now := p.now()
	switch {
	case status == membership.StatusExpired:
	case expiration != nil:
		m.ExpirationDate = expiration
	case status != membership.StatusCancelled:
		m.ExpirationDate = nil
	}
	// Cancelled memberships keep access only until a known date.
	if status == membership.StatusCancelled && m.ExpirationDate == nil {
		m.ExpirationDate = &now
	}
	m.AppendNote(now, "Membership updated by import.")
	return p.memberships.save(tx, m)
}

func (p *ImportProcessor) resolveLevel(tx *gorm.DB, value, fallback string) (*models.MembershipLevel, error) {
	ref := lo.CoalesceOrEmpty(value, fallback)
	if ref == "" {
		return nil, errors.New("no membership level given")
	}

	var level models.MembershipLevel
	var err error
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		err = tx.First(&level, "id = ?", id).Error
	} else {
		err = tx.First(&level, "LOWER(name) = ?", strings.ToLower(ref)).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrLevelNotFound, ref)
		}
		return nil, err
	}
	return &level, nil
}

// ensureCustomer finds or creates the user and customer for email. New
// users get a random password and must reset it to log in.
func (p *ImportProcessor) ensureCustomer(tx *gorm.DB, email string, now time.Time) (*models.Customer, error) {
	var user models.User
	err := tx.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		password, err := randomPassword()
		if err != nil {
			return nil, err
		}
		user = models.User{Email: email, Password: password, Role: models.RoleUser}
		if err := tx.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	var customer models.Customer
	err = tx.Where("user_id = ?", user.ID).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		customer = models.Customer{
			UserID:            user.ID,
			EmailVerification: models.EmailVerificationNone,
			DateRegistered:    now,
		}
		customer.AppendNote(now, "Customer created by import.")
		if err := tx.Omit("User", "Memberships").Create(&customer).Error; err != nil {
			return nil, fmt.Errorf("failed to create customer: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	return &customer, nil
}

func randomPassword() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(base64.RawURLEncoding.EncodeToString(raw)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// resolveColumns maps import fields to header indexes.
func resolveColumns(header []string, mapping map[string]string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	fields := []string{
		ImportFieldEmail, ImportFieldLevel, ImportFieldStatus, ImportFieldCreatedDate,
		ImportFieldExpirationDate, ImportFieldAutoRenew, ImportFieldTimesBilled,
		ImportFieldGateway, ImportFieldGatewayCustomerID, ImportFieldGatewaySubscriptionID,
	}
	columns := make(map[string]int, len(fields))
	for _, field := range fields {
		name := field
		if mapped, ok := mapping[field]; ok && mapped != "" {
			name = mapped
		}
		if idx, ok := index[strings.ToLower(strings.TrimSpace(name))]; ok {
			columns[field] = idx
		}
	}
	return columns
}

// parseImportDate accepts RFC 3339 timestamps and plain dates. "none" and
// "never" mean no expiration; dates are pinned to the end of their day.
func parseImportDate(raw string) (*time.Time, error) {
	switch strings.ToLower(raw) {
	case "", "none", "never":
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", "01/02/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			if layout != "2006-01-02 15:04:05" {
				t = membership.EndOfDay(t)
			}
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", raw)
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader
}
