package service

import (
	"context"
	"fmt"
	"time"

	"github.com/farmaflow/farmaflow-backend/internal/expiry"
	"github.com/farmaflow/farmaflow-backend/internal/lots/repository"
	"github.com/farmaflow/farmaflow-backend/pkg/config"
	"github.com/farmaflow/farmaflow-backend/pkg/errors"
	"github.com/farmaflow/farmaflow-backend/pkg/logger"
	"github.com/farmaflow/farmaflow-backend/pkg/session"
	"github.com/shopspring/decimal"
)

// MaxExpiringDays bounds the window accepted by ExpiringLots
const MaxExpiringDays = 365

// LotStore is the lot persistence the service needs
type LotStore interface {
	Create(ctx context.Context, lot *repository.LotRow) error
	GetByID(ctx context.Context, id string) (*repository.LotRow, error)
	List(ctx context.Context, f repository.LotFilter) ([]*repository.LotRow, int64, error)
	ListExpiring(ctx context.Context, withinDays int, reference time.Time) ([]*repository.LotRow, error)
	AdjustQuantity(ctx context.Context, m *repository.Movement) error
	ListMovements(ctx context.Context, lotID string) ([]*repository.Movement, error)
	UpdateSalePriceByProduct(ctx context.Context, productID string, price decimal.NullDecimal) (int64, error)
}

// LossStore reads realised losses
type LossStore interface {
	MonthlyLosses(ctx context.Context, rng repository.LossRange) ([]expiry.LossRecord, error)
	ExpiredLots(ctx context.Context, rng repository.LossRange) ([]*repository.LotRow, error)
}

// EventPublisher announces lot changes
type EventPublisher interface {
	PublishLotCreated(ctx context.Context, lot *repository.LotRow, createdBy string)
	PublishQuantityAdjusted(ctx context.Context, m *repository.Movement)
	PublishExpiryAlert(ctx context.Context, a expiry.Assessment) error
}

// Clock returns the current reference time
type Clock func() time.Time

// LotService handles lot and expiry business logic
type LotService struct {
	lots       LotStore
	losses     LossStore
	publisher  EventPublisher
	snapshots  *Snapshot
	lookahead  int
	defaultVAT decimal.Decimal
	clock      Clock
	logger     *logger.Logger
}

// NewLotService creates a new lot service. A nil clock means time.Now.
func NewLotService(
	lots LotStore,
	losses LossStore,
	publisher EventPublisher,
	snapshots *Snapshot,
	cfg config.ExpiryConfig,
	clock Clock,
	log *logger.Logger,
) *LotService {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	lookahead := cfg.LookaheadDays
	if lookahead <= 0 {
		lookahead = expiry.UpcomingDays
	}
	return &LotService{
		lots:       lots,
		losses:     losses,
		publisher:  publisher,
		snapshots:  snapshots,
		lookahead:  lookahead,
		defaultVAT: decimal.NewFromFloat(cfg.DefaultVATRate),
		clock:      clock,
		logger:     log.WithComponent("lot_service"),
	}
}

// NewLot is a validated lot ready to be stored
type NewLot struct {
	ProductID       string
	ProductName     string
	ProductCode     string
	BatchNumber     string
	ExpirationDate  time.Time
	ManufactureDate *time.Time
	InitialQuantity int
	// CurrentQuantity defaults to InitialQuantity when nil
	CurrentQuantity *int
	PurchasePrice   decimal.NullDecimal
	SalePrice       decimal.NullDecimal
	SupplierName    string
}

// LossReport is the monthly loss breakdown with optional per-lot detail
type LossReport struct {
	Records []expiry.LossRecord
	Summary expiry.LossSummary
	Lots    []expiry.LotLoss
}

// Lot queries

// ListLots lists lots with their classification against today
func (s *LotService) ListLots(ctx context.Context, f repository.LotFilter) ([]expiry.Assessment, int64, error) {
	f.Reference = s.clock()
	rows, total, err := s.lots.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return expiry.AssessAll(repository.ToLots(rows), f.Reference), total, nil
}

// GetLot gets a single classified lot
func (s *LotService) GetLot(ctx context.Context, id string) (expiry.Assessment, error) {
	row, err := s.lots.GetByID(ctx, id)
	if err != nil {
		return expiry.Assessment{}, err
	}
	return expiry.Assess(row.ToLot(), s.clock()), nil
}

// ListMovements returns the stock history of a lot, newest first
func (s *LotService) ListMovements(ctx context.Context, lotID string) ([]*repository.Movement, error) {
	if _, err := s.lots.GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	return s.lots.ListMovements(ctx, lotID)
}

// ExpiringLots returns the lots expiring within days, expired ones included.
// Zero days means the configured lookahead.
func (s *LotService) ExpiringLots(ctx context.Context, days int) ([]expiry.Assessment, error) {
	if days == 0 {
		days = s.lookahead
	}
	if days < 1 || days > MaxExpiringDays {
		return nil, errors.Validation(map[string]string{
			"days": fmt.Sprintf("must be between 1 and %d", MaxExpiringDays),
		})
	}

	reference := s.clock()
	rows, err := s.lots.ListExpiring(ctx, days, reference)
	if err != nil {
		return nil, fmt.Errorf("list expiring lots: %w", err)
	}
	return expiry.AssessAll(repository.ToLots(rows), reference), nil
}

// Dashboard returns today's expiry summary, served from the snapshot when fresh
func (s *LotService) Dashboard(ctx context.Context) (expiry.Summary, error) {
	reference := s.clock()
	if summary, ok := s.snapshots.Summary(reference); ok {
		return summary, nil
	}
	return s.Refresh(ctx)
}

// Refresh recomputes today's summary from the store and caches it.
// The window never ends before the upcoming tier does.
func (s *LotService) Refresh(ctx context.Context) (expiry.Summary, error) {
	reference := s.clock()
	rows, err := s.lots.ListExpiring(ctx, max(s.lookahead, expiry.UpcomingDays), reference)
	if err != nil {
		return expiry.Summary{}, fmt.Errorf("refresh summary: %w", err)
	}

	summary := expiry.Summarize(repository.ToLots(rows), reference)
	s.snapshots.Store(reference, summary)
	return summary, nil
}

// InvalidateSnapshot drops cached summaries after an external change
func (s *LotService) InvalidateSnapshot() {
	s.snapshots.Invalidate()
}

// AnnounceAlerts publishes an alert for every expired or critical lot with
// stock that has not been announced yet. It returns how many were published.
func (s *LotService) AnnounceAlerts(ctx context.Context, summary expiry.Summary) int {
	if s.publisher == nil {
		return 0
	}

	published := 0
	for _, bucket := range [][]expiry.Assessment{summary.Expired, summary.Critical} {
		for _, a := range bucket {
			if a.Depleted || !s.snapshots.MarkAnnounced(a.Lot.ID, a.Tier) {
				continue
			}
			if err := s.publisher.PublishExpiryAlert(ctx, a); err != nil {
				s.snapshots.Forget(a.Lot.ID, a.Tier)
				continue
			}
			published++
		}
	}
	return published
}

// Lot commands

// CreateLot stores a new lot received by the session's user
func (s *LotService) CreateLot(ctx context.Context, sess *session.Session, in NewLot) (expiry.Assessment, error) {
	if sess == nil {
		return expiry.Assessment{}, errors.Unauthorized("authentication required")
	}

	current := in.InitialQuantity
	if in.CurrentQuantity != nil {
		current = *in.CurrentQuantity
	}

	details := map[string]string{}
	if current > in.InitialQuantity {
		details["current_quantity"] = "must not exceed initial_quantity"
	}
	if in.ManufactureDate != nil && !in.ManufactureDate.Before(in.ExpirationDate) {
		details["manufacture_date"] = "must be before expiration_date"
	}
	if len(details) > 0 {
		return expiry.Assessment{}, errors.Validation(details)
	}

	row := &repository.LotRow{
		ProductID:       in.ProductID,
		ProductName:     in.ProductName,
		ProductCode:     in.ProductCode,
		BatchNumber:     in.BatchNumber,
		ExpirationDate:  in.ExpirationDate,
		ManufactureDate: in.ManufactureDate,
		InitialQuantity: in.InitialQuantity,
		CurrentQuantity: current,
		PurchasePrice:   in.PurchasePrice,
		SalePrice:       in.SalePrice,
	}
	if in.SupplierName != "" {
		row.SupplierName = &in.SupplierName
	}

	if err := s.lots.Create(ctx, row); err != nil {
		return expiry.Assessment{}, err
	}

	s.snapshots.Invalidate()
	if s.publisher != nil {
		s.publisher.PublishLotCreated(ctx, row, sess.UserID)
	}

	s.logger.WithLot(row.ID).WithUserID(sess.UserID).Info().
		Str("batch_number", row.BatchNumber).
		Int("quantity", row.CurrentQuantity).
		Msg("lot created")

	return expiry.Assess(row.ToLot(), s.clock()), nil
}

// AdjustQuantity sets a lot's stock on behalf of the session's user
func (s *LotService) AdjustQuantity(ctx context.Context, sess *session.Session, lotID string, newQuantity int, reason string) (*repository.Movement, error) {
	if sess == nil {
		return nil, errors.Unauthorized("authentication required")
	}
	if newQuantity < 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must be zero or greater"})
	}
	if reason == "" {
		return nil, errors.Validation(map[string]string{"reason": "is required"})
	}

	name := sess.DisplayName()
	m := &repository.Movement{
		LotID:           lotID,
		NewQuantity:     newQuantity,
		Reason:          reason,
		PerformedBy:     sess.UserID,
		PerformedByName: &name,
	}

	if err := s.lots.AdjustQuantity(ctx, m); err != nil {
		return nil, err
	}

	s.snapshots.Invalidate()
	if s.publisher != nil {
		s.publisher.PublishQuantityAdjusted(ctx, m)
	}

	s.logger.WithLot(lotID).WithUserID(sess.UserID).Info().
		Int("previous_quantity", m.PreviousQuantity).
		Int("new_quantity", m.NewQuantity).
		Str("reason", reason).
		Msg("lot quantity adjusted")

	return m, nil
}

// RepriceProduct applies a catalog sale price to the product's lots in stock
func (s *LotService) RepriceProduct(ctx context.Context, productID string, price decimal.NullDecimal) (int64, error) {
	n, err := s.lots.UpdateSalePriceByProduct(ctx, productID, price)
	if err != nil {
		return 0, fmt.Errorf("reprice product %s: %w", productID, err)
	}
	if n > 0 {
		s.snapshots.Invalidate()
	}
	return n, nil
}

// Losses

// LossReport returns realised losses between from and to, both optional
func (s *LotService) LossReport(ctx context.Context, from, to *time.Time, detail bool) (*LossReport, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, errors.BadRequest("from must not be after to")
	}

	rng := repository.LossRange{From: from, To: to, Reference: s.clock()}

	records, err := s.losses.MonthlyLosses(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("monthly losses: %w", err)
	}

	report := &LossReport{
		Records: records,
		Summary: expiry.SummarizeLosses(records),
	}

	if detail {
		rows, err := s.losses.ExpiredLots(ctx, rng)
		if err != nil {
			return nil, fmt.Errorf("expired lots: %w", err)
		}
		report.Lots = expiry.ExpiredLotLosses(repository.ToLots(rows), rng.Reference)
	}

	return report, nil
}

// Pricing

// SuggestPrice suggests a sale price, using the configured VAT when none is given
func (s *LotService) SuggestPrice(in expiry.PricingInput) (decimal.Decimal, bool) {
	if !in.VATRate.Valid {
		in.VATRate = decimal.NewNullDecimal(s.defaultVAT)
	}
	return expiry.SuggestSalePrice(in)
}
